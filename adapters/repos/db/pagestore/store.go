//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package pagestore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

var (
	entriesBucket    = []byte("entries")
	metaBucket       = []byte("meta")
	headerKey        = []byte("header")
	descriptorKey    = []byte("descriptor")
	requiredBuckets  = [][]byte{entriesBucket, metaBucket}
	ErrClosed        = errors.New("store is closed")
	ErrNotFound      = errors.New("store file does not exist")
	ErrHeaderTooLong = errors.New("header exceeds page capacity")
)

/*
Store is a single-file ordered key-value store backed by a bbolt B+tree.

File Structure:
  - entries: the ordered data, iterated with Seek/Scan
  - meta/header: a fixed capacity header of at most one page
  - meta/descriptor: a msgpack encoded description of the file's layout

The store is opened with Create (which discards previous content) or Open,
and is registered in its Mappings until Close is called.
*/
type Store struct {
	sync.RWMutex

	path     string
	pageSize int
	noSync   bool
	readOnly bool
	mappings *Mappings
	fs       FileSystem
	db       *bolt.DB
}

func newStore(path string, opts []Option) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve path %q", path)
	}

	s := &Store{
		path:     abs,
		pageSize: DefaultPageSize,
		mappings: DefaultMappings,
		fs:       OSFileSystem{},
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Create (re)creates the store file at path, previous content is discarded.
func Create(path string, opts ...Option) (*Store, error) {
	s, err := newStore(path, opts)
	if err != nil {
		return nil, err
	}
	if s.readOnly {
		return nil, errors.New("cannot create a read-only store")
	}

	if _, ok := s.mappings.ExistingMapping(s.path); ok {
		return nil, errors.Wrapf(ErrAlreadyMapped, "create %q", s.path)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path)); err != nil {
		return nil, errors.Wrapf(err, "create directory for %q", s.path)
	}
	if err := s.fs.Remove(s.path); err != nil {
		return nil, errors.Wrapf(err, "clear existing file %q", s.path)
	}

	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens an existing store file. ErrNotFound is returned if there is
// none.
func Open(path string, opts ...Option) (*Store, error) {
	s, err := newStore(path, opts)
	if err != nil {
		return nil, err
	}

	exists, err := s.fs.FileExists(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "check file %q", s.path)
	}
	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "open %q", s.path)
	}

	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open() (err error) {
	if err := s.mappings.tryAdd(s); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			s.mappings.remove(s)
		}
	}()

	db, err := bolt.Open(s.path, 0o600, &bolt.Options{
		PageSize: s.pageSize,
		NoSync:   s.noSync,
		ReadOnly: s.readOnly,
	})
	if err != nil {
		return errors.Wrapf(err, "open %q", s.path)
	}
	// files opened with Open keep the page size they were created with
	s.pageSize = db.Info().PageSize

	if !s.readOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, name := range requiredBuckets {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return errors.Wrapf(err, "create bucket %q", name)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return errors.Wrapf(err, "init buckets of %q", s.path)
		}
	}

	s.db = db
	return nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) PageSize() int {
	return s.pageSize
}

// HeaderCapacity is the maximum amount of bytes WriteHeader can persist.
func (s *Store) HeaderCapacity() int {
	return s.pageSize
}

// Batch gives access to the entries bucket inside one write transaction.
type Batch struct {
	b *bolt.Bucket
}

func (b *Batch) Put(key, value []byte) error {
	return b.b.Put(key, value)
}

func (b *Batch) Delete(key []byte) error {
	return b.b.Delete(key)
}

// Get returns a copy of the value stored for key, or nil.
func (b *Batch) Get(key []byte) []byte {
	v := b.b.Get(key)
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Update runs fn inside a single write transaction. If fn returns an error
// nothing written by fn is persisted.
func (s *Store) Update(fn func(b *Batch) error) error {
	s.RLock()
	defer s.RUnlock()

	if s.db == nil {
		return ErrClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Batch{b: tx.Bucket(entriesBucket)})
	})
}

// Seek calls fn for every entry with a key >= from in key order, until fn
// returns false. A nil from starts at the first entry. Key and value are only
// valid during the call to fn.
func (s *Store) Seek(from []byte, fn func(k, v []byte) bool) error {
	s.RLock()
	defer s.RUnlock()

	if s.db == nil {
		return ErrClosed
	}

	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b == nil {
			return nil
		}

		c := b.Cursor()
		var k, v []byte
		if from == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(from)
		}
		for ; k != nil; k, v = c.Next() {
			if !fn(k, v) {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) Scan(fn func(k, v []byte) bool) error {
	return s.Seek(nil, fn)
}

func (s *Store) Count() (int, error) {
	s.RLock()
	defer s.RUnlock()

	if s.db == nil {
		return 0, ErrClosed
	}

	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(entriesBucket); b != nil {
			count = b.Stats().KeyN
		}
		return nil
	})
	return count, err
}

// WriteHeader hands write a zeroed buffer of exactly HeaderCapacity bytes and
// persists the first n bytes it reports as written. The header transaction is
// always synced, even in NoSync mode.
func (s *Store) WriteHeader(write func(buf []byte) (int, error)) error {
	s.Lock()
	defer s.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	buf := make([]byte, s.pageSize)
	n, err := write(buf)
	if err != nil {
		return errors.Wrap(err, "encode header")
	}
	if n < 0 || n > len(buf) {
		return errors.Wrapf(ErrHeaderTooLong, "%d bytes", n)
	}

	noSync := s.db.NoSync
	s.db.NoSync = false
	defer func() { s.db.NoSync = noSync }()

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(headerKey, buf[:n])
	})
	return errors.Wrapf(err, "write header of %q", s.path)
}

// ReadHeader returns a copy of the persisted header, nil if none was ever
// written.
func (s *Store) ReadHeader() ([]byte, error) {
	return s.readMeta(headerKey)
}

// WriteDescriptor persists v msgpack encoded next to the header.
func (s *Store) WriteDescriptor(v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal descriptor")
	}

	s.RLock()
	defer s.RUnlock()

	if s.db == nil {
		return ErrClosed
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(descriptorKey, data)
	})
	return errors.Wrapf(err, "write descriptor of %q", s.path)
}

// ReadDescriptor decodes the persisted descriptor into v. It reports false if
// the file does not have one.
func (s *Store) ReadDescriptor(v interface{}) (bool, error) {
	data, err := s.readMeta(descriptorKey)
	if err != nil || data == nil {
		return false, err
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return false, errors.Wrap(err, "unmarshal descriptor")
	}
	return true, nil
}

func (s *Store) readMeta(key []byte) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s of %q", key, s.path)
	}
	return out, nil
}

// SetNoSync switches between synced and unsynced commits of an open store.
func (s *Store) SetNoSync(noSync bool) {
	s.Lock()
	defer s.Unlock()

	s.noSync = noSync
	if s.db != nil {
		s.db.NoSync = noSync
	}
}

func (s *Store) Sync() error {
	s.RLock()
	defer s.RUnlock()

	if s.db == nil {
		return ErrClosed
	}
	if s.readOnly {
		return nil
	}
	return errors.Wrapf(s.db.Sync(), "sync %q", s.path)
}

func (s *Store) IsOpen() bool {
	s.RLock()
	defer s.RUnlock()

	return s.db != nil
}

// Close syncs and releases the file. Closing a closed store is a no-op.
func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()

	return s.closeUnlocked()
}

func (s *Store) closeUnlocked() error {
	if s.db == nil {
		return nil
	}

	var result *multierror.Error
	if !s.readOnly && s.db.NoSync {
		if err := s.db.Sync(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "sync %q", s.path))
		}
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "close %q", s.path))
	}

	s.db = nil
	s.mappings.remove(s)
	return result.ErrorOrNil()
}

// Drop closes the store if it is still open and deletes its file.
func (s *Store) Drop() error {
	s.Lock()
	defer s.Unlock()

	var result *multierror.Error
	if err := s.closeUnlocked(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.fs.Remove(s.path); err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "remove %q", s.path))
	}
	return result.ErrorOrNil()
}

// IsNotFound reports whether err was caused by a missing store file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, os.ErrNotExist)
}
