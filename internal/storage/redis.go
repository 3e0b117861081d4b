package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys when RedisOptions.Prefix is empty.
const DefaultRedisPrefix = "zetafill:"

// RedisOptions configures RedisStorage.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStorage keeps each snapshot as a JSON string and indexes ids in a
// sorted set scored by creation time.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects and pings the server.
func NewRedisStorage(ctx context.Context, opts RedisOptions) (*RedisStorage, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address must not be empty")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultRedisPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return &RedisStorage{client: client, prefix: opts.Prefix}, nil
}

func (s *RedisStorage) key(id string) string { return s.prefix + "snapshot:" + id }
func (s *RedisStorage) indexKey() string     { return s.prefix + "snapshots" }

func (s *RedisStorage) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	content, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", rec.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.ID), content, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(rec.CreatedAt.UnixNano()),
			Member: rec.ID,
		})
		return nil
	})
	return err
}

func (s *RedisStorage) Get(ctx context.Context, id string) (Record, error) {
	content, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(content, &rec); err != nil {
		return Record{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return rec, nil
}

func (s *RedisStorage) List(ctx context.Context) ([]Record, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// deleted between ZRANGE and GET
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStorage) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *RedisStorage) Close() error { return s.client.Close() }
