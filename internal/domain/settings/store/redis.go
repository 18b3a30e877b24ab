package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"pose-stream-server-go/internal/domain/settings"
)

const (
	defaultRedisPrefix = "posestream"
	redisPingTimeout   = 3 * time.Second
)

// redisStore keeps the snapshot as one JSON string at
// "<prefix>:settings:<name>" with no expiry.
type redisStore struct {
	client *redis.Client
	key    string
}

func redisKey(prefix, name string) string {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return strings.Join([]string{prefix, "settings", name}, ":")
}

// NewRedis 连接 redis 并确认可用
func NewRedis(cfg Config) (Store, error) {
	rc := cfg.Redis
	switch {
	case rc == nil:
		return nil, fmt.Errorf("redis configuration missing")
	case rc.Addr == "":
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Username: rc.Username,
		Password: rc.Password,
		DB:       rc.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rc.Addr, err)
	}
	return &redisStore{client: client, key: redisKey(rc.Prefix, snapshotName(cfg))}, nil
}

func (s *redisStore) Driver() string { return DriverRedis }

func (s *redisStore) Load(ctx context.Context) (settings.Settings, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	switch {
	case stderrors.Is(err, redis.Nil):
		return settings.Settings{}, false, nil
	case err != nil:
		return settings.Settings{}, false, err
	}

	var snapshot settings.Settings
	if err := sonic.Unmarshal(data, &snapshot); err != nil {
		return settings.Settings{}, false, fmt.Errorf("decode settings snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (s *redisStore) Save(ctx context.Context, snapshot settings.Settings) error {
	data, err := sonic.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
