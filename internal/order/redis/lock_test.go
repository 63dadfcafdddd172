package redis

import (
	"context"
	"log"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis so the tests
// never need a real server.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestLockPhotosAllOrNothing(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{Client: client, Logger: log.Default()}

	ok, err := r.LockPhotos("album1", []string{"p1", "p2", "p3"}, "order-a")
	require.NoError(t, err)
	assert.True(t, ok)

	// p2 is held by order-a; the competing selection must acquire nothing
	ok, err = r.LockPhotos("album1", []string{"p2", "p4"}, "order-b")
	require.NoError(t, err)
	assert.False(t, ok)

	// p4 was rolled back, so a selection without overlap succeeds
	ok, err = r.LockPhotos("album1", []string{"p4", "p5"}, "order-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockPhotosIsOwnerScoped(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{Client: client, Logger: log.Default()}

	ok, err := r.LockPhotos("album1", []string{"p1"}, "order-a")
	require.NoError(t, err)
	require.True(t, ok)

	// A different order cannot release the lock
	require.NoError(t, r.UnlockPhotos("album1", []string{"p1"}, "order-b"))
	ok, err = r.LockPhoto("album1", "p1", "order-c")
	require.NoError(t, err)
	assert.False(t, ok)

	// The owner can
	require.NoError(t, r.UnlockPhotos("album1", []string{"p1"}, "order-a"))
	ok, err = r.LockPhoto("album1", "p1", "order-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocksAreScopedPerAlbum(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{Client: client, Logger: log.Default()}

	ok, err := r.LockPhotos("album1", []string{"p1"}, "order-a")
	require.NoError(t, err)
	require.True(t, ok)

	// The same photo id in another album is a different lock
	ok, err = r.LockPhotos("album2", []string{"p1"}, "order-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockMissingKeyIsNoop(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{Client: client, Logger: log.Default()}

	assert.NoError(t, r.UnlockPhotos("album1", []string{"never-locked"}, "order-a"))
}
