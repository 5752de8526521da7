// Package bolt provides a local, file-backed secret store on bbolt.
//
// The database holds one top-level bucket per secret container with an
// "owner" key, a "versions" sub-bucket keyed by big-endian version numbers
// and a "readers" sub-bucket keyed by identity.
package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/imamik/swarmzner/internal/secrets"
)

var (
	keyOwner       = []byte("owner")
	bucketVersions = []byte("versions")
	bucketReaders  = []byte("readers")
)

// SecretStore implements secrets.Store using BoltDB.
type SecretStore struct {
	db *bolt.DB
}

var _ secrets.Store = (*SecretStore)(nil)

// Open opens (or creates) the database at path with mode 0600.
func Open(path string) (*SecretStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SecretStore{db: db}, nil
}

// Close closes the database.
func (s *SecretStore) Close() error {
	return s.db.Close()
}

func container(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, secrets.ErrNotFound
	}
	return b, nil
}

func itob(v secrets.Version) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func btoi(b []byte) secrets.Version {
	return secrets.Version(binary.BigEndian.Uint64(b))
}

// CreateContainer implements secrets.Store.
func (s *SecretStore) CreateContainer(_ context.Context, name, owner string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) != nil {
			return nil
		}
		b, err := tx.CreateBucket([]byte(name))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
		if _, err := b.CreateBucket(bucketVersions); err != nil {
			return err
		}
		if _, err := b.CreateBucket(bucketReaders); err != nil {
			return err
		}
		return b.Put(keyOwner, []byte(owner))
	})
}

// Owner implements secrets.Store.
func (s *SecretStore) Owner(_ context.Context, name string) (string, error) {
	var owner string
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := container(tx, name)
		if err != nil {
			return err
		}
		owner = string(b.Get(keyOwner))
		return nil
	})
	return owner, err
}

// AddVersion implements secrets.Store.
func (s *SecretStore) AddVersion(_ context.Context, name string, value []byte) (secrets.Version, error) {
	var v secrets.Version
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := container(tx, name)
		if err != nil {
			return err
		}
		versions := b.Bucket(bucketVersions)
		seq, err := versions.NextSequence()
		if err != nil {
			return err
		}
		v = secrets.Version(seq)
		return versions.Put(itob(v), value)
	})
	return v, err
}

func latest(tx *bolt.Tx, name string) ([]byte, secrets.Version, error) {
	b, err := container(tx, name)
	if err != nil {
		return nil, 0, err
	}
	k, val := b.Bucket(bucketVersions).Cursor().Last()
	if k == nil {
		return nil, 0, secrets.ErrNotFound
	}
	return append([]byte(nil), val...), btoi(k), nil
}

// LatestVersion implements secrets.Store.
func (s *SecretStore) LatestVersion(_ context.Context, name string) (secrets.Version, error) {
	var v secrets.Version
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		_, v, err = latest(tx, name)
		return err
	})
	return v, err
}

// ReadLatest implements secrets.Store.
func (s *SecretStore) ReadLatest(_ context.Context, name string) ([]byte, secrets.Version, error) {
	var (
		data []byte
		v    secrets.Version
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		data, v, err = latest(tx, name)
		return err
	})
	return data, v, err
}

// GrantRead implements secrets.Store.
func (s *SecretStore) GrantRead(_ context.Context, name, identity string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := container(tx, name)
		if err != nil {
			return err
		}
		return b.Bucket(bucketReaders).Put([]byte(identity), []byte{1})
	})
}

// CanRead implements secrets.Store.
func (s *SecretStore) CanRead(_ context.Context, name, identity string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := container(tx, name)
		if err != nil {
			return err
		}
		ok = b.Bucket(bucketReaders).Get([]byte(identity)) != nil
		return nil
	})
	return ok, err
}

// DeleteContainer implements secrets.Store.
func (s *SecretStore) DeleteContainer(_ context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
}
