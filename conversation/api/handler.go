package api

import (
	"net/http"

	"campus-found/backend/conversation/models"
	"campus-found/backend/conversation/service"
	"campus-found/backend/pkg/errors"
	"campus-found/backend/pkg/logger"
	"campus-found/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// StartRequest opens or continues a conversation with another participant
type StartRequest struct {
	Other string `json:"other" binding:"required"`
}

// SendRequest appends a message. Other, when set, must be the conversation's
// counterpart.
type SendRequest struct {
	Text  string `json:"text"`
	Other string `json:"other,omitempty"`
}

// ConversationResponse is a conversation as seen by one participant
type ConversationResponse struct {
	ID                string   `json:"id"`
	Participants      []string `json:"participants"`
	Other             string   `json:"other"`
	LastMessage       string   `json:"last_message"`
	LastMessageTime   string   `json:"last_message_time"`
	LastMessageSender string   `json:"last_message_sender"`
	CreatedAt         string   `json:"created_at"`
}

// StartResponse reports whether the conversation was created by this call
type StartResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Created      bool                 `json:"created"`
}

// MessageResponse is a single ledger entry
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Sender         string `json:"sender"`
	Time           string `json:"time"`
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// ErrMalformedBody is returned when a request body is not valid JSON
var ErrMalformedBody = errors.NewBadRequestError("MALFORMED_BODY", "Request body is not valid JSON")

func toConversationResponse(conv *models.Conversation, caller string) ConversationResponse {
	other, _ := conv.Pair().Other(caller)
	return ConversationResponse{
		ID:                conv.ID,
		Participants:      conv.Participants(),
		Other:             other,
		LastMessage:       conv.LastMessage,
		LastMessageTime:   conv.LastMessageTime.UTC().Format(timeLayout),
		LastMessageSender: conv.LastMessageSender,
		CreatedAt:         conv.CreatedAt.UTC().Format(timeLayout),
	}
}

func toMessageResponse(msg *models.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Text:           msg.Text,
		Sender:         msg.Sender,
		Time:           msg.Time.UTC().Format(timeLayout),
	}
}

func toConversationList(conversations []models.Conversation, caller string) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(conversations))
	for i := range conversations {
		out = append(out, toConversationResponse(&conversations[i], caller))
	}
	return out
}

func toMessageList(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}
	return out
}

// MessageHandler serves the messaging REST endpoints
type MessageHandler struct {
	messenger *service.Messenger
	log       *logger.Logger
}

// NewMessageHandler creates a handler backed by messenger
func NewMessageHandler(messenger *service.Messenger, log *logger.Logger) *MessageHandler {
	return &MessageHandler{messenger: messenger, log: log}
}

func caller(c *gin.Context) string {
	return middleware.GetParticipant(c.Request.Context())
}

// StartConversation handles POST /conversations
func (h *MessageHandler) StartConversation(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.ErrInvalidParticipant.WithDetails(err.Error()))
		return
	}

	self := caller(c)
	handle, err := h.messenger.StartOrContinue(c.Request.Context(), self, req.Other)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, StartResponse{
		Conversation: toConversationResponse(handle.Conversation, self),
		Created:      handle.Created,
	})
}

// ListConversations handles GET /conversations
func (h *MessageHandler) ListConversations(c *gin.Context) {
	self := caller(c)
	conversations, err := h.messenger.ListConversations(c.Request.Context(), self)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": toConversationList(conversations, self)})
}

// GetConversation handles GET /conversations/:id
func (h *MessageHandler) GetConversation(c *gin.Context) {
	self := caller(c)
	conv, err := h.messenger.Conversation(c.Request.Context(), self, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toConversationResponse(conv, self))
}

// ListMessages handles GET /conversations/:id/messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	messages, err := h.messenger.History(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": toMessageList(messages)})
}

// SendMessage handles POST /conversations/:id/messages. A message that was
// stored but whose summary update failed is answered with 202 and both the
// message and the error, so the client neither retries nor loses it.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ErrMalformedBody.WithDetails(err.Error()))
		return
	}

	msg, err := h.messenger.Send(c.Request.Context(), caller(c), c.Param("id"), req.Text, req.Other)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, toMessageResponse(msg))
	case msg != nil && errors.Is(err, errors.ErrPartialSummaryFailure):
		logger.FromGin(c, h.log).Warn("Summary update failed after append",
			"conversation_id", msg.ConversationID,
			"message_id", msg.ID,
			"error", err,
		)
		c.JSON(http.StatusAccepted, gin.H{
			"message": toMessageResponse(msg),
			"error": gin.H{
				"code":    errors.ErrPartialSummaryFailure.Code,
				"message": errors.ErrPartialSummaryFailure.Message,
			},
		})
	default:
		c.Error(err)
	}
}

// RecomputeSummary handles POST /conversations/:id/summary/recompute
func (h *MessageHandler) RecomputeSummary(c *gin.Context) {
	self := caller(c)
	conv, err := h.messenger.RecomputeSummary(c.Request.Context(), self, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toConversationResponse(conv, self))
}
