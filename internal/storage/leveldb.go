package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelKeyPrefix = "snapshot#"

var writeOptions = opt.WriteOptions{Sync: true}

// LevelDBStorage keeps snapshots as JSON values under "snapshot#<id>".
type LevelDBStorage struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the database at path.
func OpenLevelDB(path string) (*LevelDBStorage, error) {
	if path == "" {
		return nil, errors.New("leveldb path must not be empty")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBStorage{db: db}, nil
}

func (s *LevelDBStorage) Save(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	content, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", rec.ID, err)
	}
	return s.db.Put([]byte(levelKeyPrefix+rec.ID), content, &writeOptions)
}

func (s *LevelDBStorage) Get(_ context.Context, id string) (Record, error) {
	content, err := s.db.Get([]byte(levelKeyPrefix+id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
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

func (s *LevelDBStorage) List(_ context.Context) ([]Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(levelKeyPrefix)), nil)
	defer iter.Release()

	var out []Record
	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", iter.Key()[len(levelKeyPrefix):], err)
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func (s *LevelDBStorage) Delete(_ context.Context, id string) error {
	key := []byte(levelKeyPrefix + id)
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.db.Delete(key, &writeOptions)
}

func (s *LevelDBStorage) Close() error { return s.db.Close() }
