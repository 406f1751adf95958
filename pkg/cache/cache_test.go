package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetHonoursExpiry(t *testing.T) {
	now := time.Date(2024, 9, 2, 14, 0, 0, 0, time.UTC)
	c := New[string](Options{TTL: time.Minute})
	c.now = func() time.Time { return now }

	c.Set("db.password", "hunter2")
	v, ok := c.Get("db.password")
	assert.True(t, ok)
	assert.Equal(t, "hunter2", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("db.password")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Count(), "expired entries linger until swept")

	c.DeleteExpired()
	assert.Equal(t, 0, c.Count())
}

func TestMaxItemsEvictsSoonestToExpire(t *testing.T) {
	c := New[int](Options{MaxItems: 2})
	var evicted []string
	c.SetOnEvicted(func(k string, _ int) { evicted = append(evicted, k) })

	c.SetWithExpiration("short", 1, time.Minute)
	c.SetWithExpiration("long", 2, time.Hour)
	c.SetWithExpiration("new", 3, time.Hour)

	assert.Equal(t, []string{"short"}, evicted)
	_, ok := c.Get("long")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Count())

	// overwriting an existing key never evicts
	c.SetWithExpiration("long", 4, time.Hour)
	assert.Len(t, evicted, 1)
}

func TestFlushAndStop(t *testing.T) {
	c := New[string](Options{TTL: time.Minute, CleanupInterval: time.Millisecond})
	c.Set("a", "1")
	c.Set("b", "2")
	c.Flush()
	assert.Equal(t, 0, c.Count())

	c.Stop()
	c.Stop()
}
