package main

import (
	"campus-found/backend/conversation/api"
	"campus-found/backend/conversation/grpc"
	"campus-found/backend/pkg/di"
	"campus-found/backend/pkg/router"
)

// NewRouterWithDI mounts the messaging API on the shared router
func NewRouterWithDI(c *di.Container) *router.Router {
	r := router.New(c.Config, c.Logger)
	r.SetupHealthRoutes(c.Health)

	handler := api.NewMessageHandler(c.Messenger, c.Logger)
	feeds := api.NewFeedHandler(c.Messenger, c.Config.Security.AllowedOrigins, c.Logger)
	api.RegisterMessageRoutes(r.Protected(c.JWTService), handler, feeds)

	return r
}

// NewGRPCServerWithDI builds the gRPC health endpoint
func NewGRPCServerWithDI(c *di.Container) *grpc.Server {
	return grpc.NewServer(c.Health, c.Config.Observability.ServiceName, c.Logger)
}
