package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 30 * time.Second
	lockRetryBackoff = 50 * time.Millisecond
)

// Снимает блокировку, только если она всё ещё принадлежит владельцу токена.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis реализует распределённую блокировку на SET NX с ограниченным временем жизни.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis создаёт клиент Redis и блокировку с префиксом ключей serviceName.
func NewRedis(addr, serviceName string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: serviceName,
		ttl:    defaultLockTTL,
	}
}

// Ping проверяет доступность Redis.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединения с Redis.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Lock повторяет попытку захвата, пока не истечёт контекст.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("%s:lock:%s", r.prefix, key)
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, errors.Join(ErrNotAcquired, err)
			}
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(lockRetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}

	return func() {
		// Контекст запроса может быть уже отменён, снимаем блокировку в любом случае.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, r.client, []string{lockKey}, token).Err()
	}, nil
}
