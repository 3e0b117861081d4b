package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/eugenenazirov/zetafill/internal/packing"
)

var (
	// ErrNotFound indicates no snapshot is stored under the requested id.
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidRecord indicates a record without an id.
	ErrInvalidRecord = errors.New("snapshot record must have an id")
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendRedis   = "redis"
)

// Record is a persisted run snapshot.
type Record struct {
	ID        string           `json:"id"`
	RunID     string           `json:"runId,omitempty"`
	Name      string           `json:"name,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Snapshot  packing.Snapshot `json:"snapshot"`
}

// Storage persists exported snapshots so runs can be restored later.
type Storage interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns records ordered by creation time.
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	LevelDBPath string
	RedisAddr   string
	RedisPrefix string
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStorage(), nil
	case BackendLevelDB:
		return OpenLevelDB(opts.LevelDBPath)
	case BackendRedis:
		return NewRedisStorage(ctx, RedisOptions{Addr: opts.RedisAddr, Prefix: opts.RedisPrefix})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// MemoryStorage keeps snapshots in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]Record)}
}

// Save stores a defensive copy of rec, replacing any record with the same id.
func (s *MemoryStorage) Save(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	s.records[rec.ID] = cloneRecord(rec)
	s.mu.Unlock()

	return nil
}

// Get returns a defensive copy of the record.
func (s *MemoryStorage) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStorage) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

func (s *MemoryStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStorage) Close() error { return nil }

func cloneRecord(rec Record) Record {
	rec.Snapshot.Disks = slices.Clone(rec.Snapshot.Disks)
	return rec
}

func sortRecords(recs []Record) {
	slices.SortFunc(recs, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
