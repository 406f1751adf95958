package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"campus-found/backend/conversation/feed"
	"campus-found/backend/conversation/models"
	"campus-found/backend/conversation/repository"
	"campus-found/backend/pkg/logger"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var t0 = time.Date(2024, 9, 2, 14, 0, 0, 0, time.UTC)

// fixedClock never advances, which forces the sequencer to do the work
func fixedClock() time.Time { return t0 }

func testOptions(strict bool) Options {
	return Options{StrictPairs: strict, StoreTimeout: 5 * time.Second, Now: fixedClock}
}

func newTestMessenger(store repository.Store, strict bool) (*Messenger, *feed.Broker) {
	broker := feed.NewBroker(16, logger.Discard())
	notifying := repository.NewNotifying(store, broker, logger.Discard())
	return NewMessenger(notifying, broker, testOptions(strict), logger.Discard()), broker
}

func newSQLiteStore(t *testing.T) *repository.GormStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return repository.NewGormStore(db)
}

// barrierStore holds the first n lookups until all n have missed, which
// reproduces the window in which concurrent resolves all see "not found"
type barrierStore struct {
	repository.Store

	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

func newBarrierStore(store repository.Store, n int) *barrierStore {
	return &barrierStore{Store: store, n: n, release: make(chan struct{})}
}

func (b *barrierStore) FindByPair(ctx context.Context, pair models.Pair) (*models.Conversation, error) {
	conv, err := b.Store.FindByPair(ctx, pair)

	b.mu.Lock()
	if b.arrived < b.n {
		b.arrived++
		if b.arrived == b.n {
			close(b.release)
		}
		b.mu.Unlock()
		<-b.release
	} else {
		b.mu.Unlock()
	}

	return conv, err
}

// mockStore lets tests inject store failures at a precise step
type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindByPair(ctx context.Context, pair models.Pair) (*models.Conversation, error) {
	args := m.Called(ctx, pair)
	conv, _ := args.Get(0).(*models.Conversation)
	return conv, args.Error(1)
}

func (m *mockStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	conv, _ := args.Get(0).(*models.Conversation)
	return conv, args.Error(1)
}

func (m *mockStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return m.Called(ctx, conv).Error(0)
}

func (m *mockStore) CreateIfAbsent(ctx context.Context, conv *models.Conversation) (bool, error) {
	args := m.Called(ctx, conv)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) UpdateSummary(ctx context.Context, id string, summary models.Summary) error {
	return m.Called(ctx, id, summary).Error(0)
}

func (m *mockStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockStore) ListMessages(ctx context.Context, id string) ([]models.Message, error) {
	args := m.Called(ctx, id)
	messages, _ := args.Get(0).([]models.Message)
	return messages, args.Error(1)
}

func (m *mockStore) LatestMessage(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *mockStore) ListConversations(ctx context.Context, participant string) ([]models.Conversation, error) {
	args := m.Called(ctx, participant)
	conversations, _ := args.Get(0).([]models.Conversation)
	return conversations, args.Error(1)
}

func annBo() *models.Conversation {
	conv := models.NewConversation(models.CanonicalPair("ann", "bo"), "ann", t0)
	conv.ID = "X"
	return conv
}
