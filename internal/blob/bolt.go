package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	objectsBucket  = []byte("objects")
	metadataBucket = []byte("object_metadata")
)

// BoltStore keeps objects in a single bbolt file. Content and metadata live
// in separate buckets keyed by the cleaned object path.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens (or creates) a bbolt object store at dbPath
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening object store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{objectsBucket, metadataBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Close releases the database file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Upload stores content at path
func (s *BoltStore) Upload(_ context.Context, path string, content []byte, contentType string, upsert bool) (string, error) {
	key := []byte(CleanPath(path))
	if len(key) == 0 {
		return "", fmt.Errorf("upload: empty object path")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		objects := tx.Bucket(objectsBucket)
		meta := tx.Bucket(metadataBucket)

		now := s.now().UTC()
		info := ObjectInfo{
			Name:        string(key),
			Path:        string(key),
			Size:        int64(len(content)),
			ContentType: contentType,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if existing := meta.Get(key); existing != nil {
			if !upsert {
				return ErrExists
			}
			var prev ObjectInfo
			if err := json.Unmarshal(existing, &prev); err == nil {
				info.CreatedAt = prev.CreatedAt
			}
		}

		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := objects.Put(key, content); err != nil {
			return err
		}
		return meta.Put(key, data)
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return string(key), nil
}

// Download returns the stored content at path
func (s *BoltStore) Download(_ context.Context, path string) ([]byte, error) {
	key := []byte(CleanPath(path))
	var content []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(objectsBucket).Get(key)
		if data == nil {
			return ErrNotFound
		}
		// bbolt values are only valid inside the transaction
		content = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return content, nil
}

// List returns every object stored under prefix
func (s *BoltStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	match := []byte(PrefixMatch(prefix))
	var objects []ObjectInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(metadataBucket).Cursor()
		for k, v := c.Seek(match); k != nil && bytes.HasPrefix(k, match); k, v = c.Next() {
			var info ObjectInfo
			if err := json.Unmarshal(v, &info); err != nil {
				continue
			}
			info.Name = RelativeName(prefix, info.Path)
			objects = append(objects, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return objects, nil
}
