package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status is one user's away declaration.
type Status struct {
	Since  time.Time `json:"since"`
	Reason string    `json:"reason"`
	Name   string    `json:"name"`
}

// Store holds away statuses keyed by user id.
type Store interface {
	Set(ctx context.Context, userID int64, st Status) error
	Get(ctx context.Context, userID int64) (Status, bool, error)
	// Take returns and removes the status in one step.
	Take(ctx context.Context, userID int64) (Status, bool, error)
	Count(ctx context.Context) (int, error)
}

// MemStore is an in-process Store.
type MemStore struct {
	mu       sync.Mutex
	statuses map[int64]Status
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{statuses: make(map[int64]Status)}
}

func (s *MemStore) Set(_ context.Context, userID int64, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[userID] = st
	return nil
}

func (s *MemStore) Get(_ context.Context, userID int64) (Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[userID]
	return st, ok, nil
}

func (s *MemStore) Take(_ context.Context, userID int64) (Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[userID]
	if ok {
		delete(s.statuses, userID)
	}
	return st, ok, nil
}

func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statuses), nil
}

var (
	redisAFKPrefix = "groupguard/afk/"
	redisAFKIndex  = "groupguard/afk-users"
)

// RedisStore keeps statuses in Redis so they survive restarts.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{Client: rdb}, nil
}

func redisAFKKey(userID int64) string {
	return redisAFKPrefix + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Set(ctx context.Context, userID int64, st Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	multi := s.Client.TxPipeline()
	multi.Set(ctx, redisAFKKey(userID), data, 0)
	multi.SAdd(ctx, redisAFKIndex, userID)
	_, err = multi.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (Status, bool, error) {
	data, err := s.Client.Get(ctx, redisAFKKey(userID)).Bytes()
	if err == redis.Nil {
		return Status{}, false, nil
	} else if err != nil {
		return Status{}, false, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, false, err
	}
	return st, true, nil
}

func (s *RedisStore) Take(ctx context.Context, userID int64) (Status, bool, error) {
	multi := s.Client.TxPipeline()
	get := multi.GetDel(ctx, redisAFKKey(userID))
	multi.SRem(ctx, redisAFKIndex, userID)
	if _, err := multi.Exec(ctx); err != nil && err != redis.Nil {
		return Status{}, false, err
	}

	data, err := get.Bytes()
	if err == redis.Nil {
		return Status{}, false, nil
	} else if err != nil {
		return Status{}, false, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, false, err
	}
	return st, true, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.Client.SCard(ctx, redisAFKIndex).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.Client.Close()
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*RedisStore)(nil)
)
