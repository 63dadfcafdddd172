package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis holds short-lived locks on the photos of an in-flight checkout so
// two clients cannot buy the same photo concurrently. Locks expire on their
// own; a paid order keeps its photos claimed only until the gallery marks
// them sold (owned by the excluded album layer).
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getLockDuration returns the checkout lock TTL from the environment or the
// default value.
func (r *Redis) getLockDuration() time.Duration {
	defaultDuration := 10 * time.Minute

	lockTTLStr := os.Getenv("CHECKOUT_LOCK_TTL_MINUTES")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLMin, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid CHECKOUT_LOCK_TTL_MINUTES value '" + lockTTLStr + "', using default 10 minutes")
		return defaultDuration
	}

	return time.Duration(lockTTLMin) * time.Minute
}

func lockKey(albumID, photoID string) string {
	return fmt.Sprintf("photo_lock:%s:%s", albumID, photoID)
}

// LockPhoto claims a single photo for an order.
func (r *Redis) LockPhoto(albumID, photoID, orderID string) (bool, error) {
	return r.Client.SetNX(context.Background(), lockKey(albumID, photoID), orderID, r.getLockDuration()).Result()
}

// UnlockPhoto releases a photo, but only if the lock is held by orderID.
func (r *Redis) UnlockPhoto(albumID, photoID, orderID string) error {
	ctx := context.Background()
	key := lockKey(albumID, photoID)

	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already unlocked
	}
	if err != nil {
		return err
	}
	if val == orderID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// LockPhotos claims every photo of the selection or none of them.
func (r *Redis) LockPhotos(albumID string, photoIDs []string, orderID string) (bool, error) {
	locked := []string{}
	for _, photoID := range photoIDs {
		ok, err := r.LockPhoto(albumID, photoID, orderID)
		if err != nil {
			for _, l := range locked {
				_ = r.UnlockPhoto(albumID, l, orderID)
			}
			return false, err
		}
		if !ok {
			for _, l := range locked {
				_ = r.UnlockPhoto(albumID, l, orderID)
			}
			return false, nil
		}
		locked = append(locked, photoID)
	}
	return true, nil
}

// UnlockPhotos releases every photo of the selection, reporting the first
// error encountered.
func (r *Redis) UnlockPhotos(albumID string, photoIDs []string, orderID string) error {
	var firstErr error
	for _, photoID := range photoIDs {
		err := r.UnlockPhoto(albumID, photoID, orderID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
