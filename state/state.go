// Package state is the durable key-value persistence of the tracking session.
// Values are stored in a single bbolt bucket and survive process restarts.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotblauer/catmotion/params"
	"go.etcd.io/bbolt"
)

var ErrNilKey = errors.New("nil key")

type Store struct {
	DB     *bbolt.DB
	bucket []byte
	rOnly  bool
}

// Open opens (creating if necessary) the state database in dir.
// Opening a writable store blocks other writers and readers with a file lock;
// Open gives up after timeout, or waits forever if timeout is 0.
func Open(dir string, readOnly bool, timeout time.Duration) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(dir, params.StateDBName),
		0600, &bbolt.Options{
			ReadOnly: readOnly,
			Timeout:  timeout,
		})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	return &Store{
		DB:     db,
		bucket: params.StateBucket,
		rOnly:  readOnly,
	}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Get returns the value at key, or nil if there is none.
func (s *Store) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, ErrNilKey
	}
	var out []byte
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return nil
		}
		// Gotcha! The value returned by Get is only valid in the scope of the transaction.
		got := bucket.Get([]byte(key))
		if got == nil {
			return nil
		}
		out = bytes.Clone(got)
		return nil
	})
	return out, err
}

func (s *Store) Set(key string, value []byte) error {
	if key == "" {
		return ErrNilKey
	}
	if value == nil {
		value = []byte{}
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	if key == "" {
		return ErrNilKey
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

// Keys returns every stored key, sorted.
func (s *Store) Keys() ([]string, error) {
	keys := []string{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
