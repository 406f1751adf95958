package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"campus-found/backend/conversation/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func stores(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"gorm":   func() Store { return NewGormStore(newSQLiteDB(t)) },
	}
}

var t0 = time.Date(2024, 9, 2, 14, 0, 0, 0, time.UTC)

func TestStoreContract(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk()
			pair := models.CanonicalPair("bo@bc.edu", "ann@bc.edu")

			_, err := store.FindByPair(ctx, pair)
			assert.ErrorIs(t, err, ErrNotFound)

			conv := models.NewConversation(pair, "bo@bc.edu", t0)
			require.NoError(t, store.CreateConversation(ctx, conv))
			require.NotEmpty(t, conv.ID)

			found, err := store.FindByPair(ctx, models.CanonicalPair("ann@bc.edu", "bo@bc.edu"))
			require.NoError(t, err)
			assert.Equal(t, conv.ID, found.ID)
			assert.Equal(t, []string{"ann@bc.edu", "bo@bc.edu"}, found.Participants())
			assert.Equal(t, "", found.LastMessage)
			assert.Equal(t, "bo@bc.edu", found.LastMessageSender)

			m1 := &models.Message{ConversationID: conv.ID, Text: "Is this your wallet?", Sender: "bo@bc.edu", Time: t0.Add(time.Second)}
			m2 := &models.Message{ConversationID: conv.ID, Text: "Yes!", Sender: "ann@bc.edu", Time: t0.Add(2 * time.Second)}
			require.NoError(t, store.AppendMessage(ctx, m2))
			require.NoError(t, store.AppendMessage(ctx, m1))

			history, err := store.ListMessages(ctx, conv.ID)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, "Is this your wallet?", history[0].Text)
			assert.Equal(t, "Yes!", history[1].Text)

			latest, err := store.LatestMessage(ctx, conv.ID)
			require.NoError(t, err)
			assert.Equal(t, m2.ID, latest.ID)

			require.NoError(t, store.UpdateSummary(ctx, conv.ID, models.SummaryOf(m2)))
			got, err := store.GetConversation(ctx, conv.ID)
			require.NoError(t, err)
			assert.Equal(t, "Yes!", got.LastMessage)
			assert.True(t, got.LastMessageTime.Equal(m2.Time))
			assert.Equal(t, "ann@bc.edu", got.LastMessageSender)

			assert.ErrorIs(t, store.UpdateSummary(ctx, "missing", models.SummaryOf(m2)), ErrNotFound)
			_, err = store.GetConversation(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.LatestMessage(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk()

			older := models.NewConversation(models.CanonicalPair("ann", "bo"), "ann", t0)
			newer := models.NewConversation(models.CanonicalPair("cy", "ann"), "cy", t0.Add(time.Hour))
			unrelated := models.NewConversation(models.CanonicalPair("bo", "cy"), "bo", t0.Add(2*time.Hour))
			for _, c := range []*models.Conversation{older, newer, unrelated} {
				require.NoError(t, store.CreateConversation(ctx, c))
			}

			list, err := store.ListConversations(ctx, "ann")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, newer.ID, list[0].ID)
			assert.Equal(t, older.ID, list[1].ID)

			list, err = store.ListConversations(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestCreateIfAbsentIsAtomic(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk()
			pair := models.CanonicalPair("ann", "bo")

			const racers = 8
			var wg sync.WaitGroup
			ids := make([]string, racers)
			created := make([]bool, racers)
			start := make(chan struct{})

			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					conv := models.NewConversation(pair, "ann", t0)
					ok, err := store.CreateIfAbsent(ctx, conv)
					assert.NoError(t, err)
					ids[i], created[i] = conv.ID, ok
				}(i)
			}
			close(start)
			wg.Wait()

			winners := 0
			for i := range ids {
				assert.Equal(t, ids[0], ids[i], "every racer sees the same conversation")
				if created[i] {
					winners++
				}
			}
			assert.Equal(t, 1, winners)

			list, err := store.ListConversations(ctx, "ann")
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestGormRejectsDuplicatePair(t *testing.T) {
	store := NewGormStore(newSQLiteDB(t))
	ctx := context.Background()
	pair := models.CanonicalPair("ann", "bo")

	require.NoError(t, store.CreateConversation(ctx, models.NewConversation(pair, "ann", t0)))
	err := store.CreateConversation(ctx, models.NewConversation(pair, "bo", t0))
	assert.ErrorIs(t, err, ErrDuplicatePair)
}

func TestMemoryAllowsDuplicatePairAndFindsEarliest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	pair := models.CanonicalPair("ann", "bo")

	first := models.NewConversation(pair, "ann", t0)
	require.NoError(t, store.CreateConversation(ctx, first))
	require.NoError(t, store.CreateConversation(ctx, models.NewConversation(pair, "bo", t0)))

	assert.Equal(t, 2, store.CountByPair(pair))
	found, err := store.FindByPair(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FindByPair(ctx, models.CanonicalPair("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
}
