package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// memoryRedis answers GET, SET and DEL from a map through a go-redis hook, so
// the client never dials.
type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	expiry map[string][]any
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, expiry: map[string][]any{}}
}

func (m *memoryRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (m *memoryRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (m *memoryRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StringCmd:
			v, ok := m.values[fmt.Sprint(args[1])]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			key := fmt.Sprint(args[1])
			switch v := args[2].(type) {
			case []byte:
				m.values[key] = string(v)
			default:
				m.values[key] = fmt.Sprint(v)
			}
			m.expiry[key] = args[3:]
			c.SetVal("OK")
		case *redis.IntCmd:
			var n int64
			for _, a := range args[1:] {
				key := fmt.Sprint(a)
				if _, ok := m.values[key]; ok {
					delete(m.values, key)
					n++
				}
			}
			c.SetVal(n)
		default:
			err := fmt.Errorf("unexpected command %s", cmd.Name())
			cmd.SetErr(err)
			return err
		}
		return nil
	}
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *memoryRedis) {
	t.Helper()

	fake := newMemoryRedis()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(fake)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreWithClient(client, "", ttl), fake
}

func TestRedisStoreKey(t *testing.T) {
	t.Parallel()

	store := NewRedisStoreWithClient(nil, "", -time.Second)
	key, err := store.key("s-1")
	require.NoError(t, err)
	assert.Equal(t, "router:session:s-1", key)
	assert.Zero(t, store.ttl, "negative ttl clamps to 0")

	_, err = store.key("")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, fake := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	at := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	snap := &Snapshot{
		SessionID: "s-1",
		Params:    map[string]string{"order_id": "O-12345"},
		Waiting:   "email",
		History: []contractx.Message{
			{Role: contractx.RoleUser, Text: "where is O-12345", Timestamp: at},
			{Role: contractx.RoleAgent, Text: "in transit", Timestamp: at.Add(time.Second)},
		},
		TakenAt: at,
	}
	require.NoError(t, store.Save(ctx, snap))
	assert.Equal(t, []any{"ex", int64(60)}, fake.expiry["router:session:s-1"])

	got, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Params, got.Params)
	assert.Equal(t, snap.Waiting, got.Waiting)
	require.Len(t, got.History, 2)
	assert.True(t, got.History[1].Timestamp.Equal(at.Add(time.Second)))

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRedisStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestRedisStore(t, 0)
	_, err := store.Load(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrSnapshotNotFound), "err = %v", err)
}

func TestRedisStoreRejectsBadSnapshots(t *testing.T) {
	t.Parallel()

	store, fake := newTestRedisStore(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, &Snapshot{}), ErrInvalidSession)

	fake.values["router:session:s-bad"] = "{not json"
	_, err := store.Load(ctx, "s-bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSnapshotNotFound)
}

func TestStorePersistAndWarmThroughRedis(t *testing.T) {
	t.Parallel()

	backend, _ := newTestRedisStore(t, 0)
	ctx := context.Background()

	src := NewStore()
	src.ForSession("s-1").Append(contractx.Message{Role: contractx.RoleUser, Text: "hi"})
	src.ForSession("s-1").Merge(map[string]string{"order_id": "O-1"})
	require.NoError(t, src.Persist(ctx, backend))

	dst := NewStore()
	n, err := dst.Warm(ctx, backend, "s-1", "s-missing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "O-1", dst.ForSession("s-1").Params()["order_id"])
	assert.Len(t, dst.ForSession("s-1").History(), 1)
}
