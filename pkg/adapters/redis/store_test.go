package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/adapters/redis"
	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/config"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/ports"
	"github.com/benchrig/benchrig/pkg/state"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunReportStoreContract(t, redis.NewFromClient(client))
}

func TestRedisLocker_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunLockerContract(t, redis.NewLocker(client, "test:"))
}

func TestRedisLocker_ForeignTokenSurvivesUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "bench01", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:bench01"))

	// Simulate expiry followed by another station taking the key.
	require.NoError(t, mr.Set("test:lock:bench01", "someone-else"))
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("test:lock:bench01"), "unlock must not release a lock it no longer owns")
}

func TestRedisStore_TTLExpiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithPrefix("custom:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Report{RunID: "r1", Started: time.Now()}))
	assert.True(t, mr.Exists("custom:r1"))
	assert.True(t, mr.Exists("custom:index"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	members, err := client.ZCard(ctx, "custom:index").Result()
	require.NoError(t, err)
	assert.Zero(t, members, "expired entries are pruned from the index")
}

func TestPublisher_MirrorsMutations(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "bench01")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	msgs := sub.Channel()

	tree := state.New()
	pub := redis.NewPublisher(client, "bench01", redis.WithPathPrefix("station"), redis.WithEventName("update"))
	detach := pub.Attach(tree)

	tree.Update(state.Path{"run", "status"}, "running")
	tree.Delete(state.Path{"run", "status"})
	detach()
	tree.Update(state.Path{"run", "status"}, "ignored")

	next := func() redis.Message {
		t.Helper()
		select {
		case m := <-msgs:
			var out redis.Message
			require.NoError(t, json.Unmarshal([]byte(m.Payload), &out))
			return out
		case <-time.After(2 * time.Second):
			t.Fatal("no message received")
			return redis.Message{}
		}
	}

	first := next()
	assert.Equal(t, redis.Message{Event: "update", Path: "station/run/status", Content: "running", Operation: state.OpUpdate}, first)

	second := next()
	assert.Equal(t, "station/run/status", second.Path)
	assert.Equal(t, state.OpDelete, second.Operation)

	select {
	case m := <-msgs:
		t.Fatalf("unexpected message after detach: %s", m.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceFactory(t *testing.T) {
	mr, _ := newClient(t)

	c := bench.New(context.Background(), config.FromMap(map[string]any{"redis.addr": mr.Addr()}))
	c.RegisterService("cache", redis.ServiceFactory("redis.addr"))
	c.RegisterService("missing", redis.ServiceFactory("nope"))

	client, err := bench.ServiceAs[*backend.Client](c, "cache")
	require.NoError(t, err)
	require.NoError(t, client.Set(c, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	again, err := bench.ServiceAs[*backend.Client](c, "cache")
	require.NoError(t, err)
	assert.Same(t, client, again)

	_, err = c.Service("missing")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	require.NoError(t, c.Close())
}
