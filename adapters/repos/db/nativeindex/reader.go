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

package nativeindex

import (
	"github.com/pkg/errors"
	"github.com/weaviate/nativeindex/adapters/repos/db/pagestore"
)

// Descriptor is persisted next to the header when an index file is created.
type Descriptor struct {
	Layout           string         `msgpack:"layout"`
	KeySize          int            `msgpack:"key_size"`
	Unique           bool           `msgpack:"unique"`
	SameEntityPolicy string         `msgpack:"same_entity_policy"`
	Sampling         SamplingConfig `msgpack:"sampling"`
	RunID            string         `msgpack:"run_id"`
	CreatedAtUnix    int64          `msgpack:"created_at"`
}

// Reader gives read-only access to an index file that is not open in a
// populator, typically to learn the outcome of an earlier population.
type Reader struct {
	store      *pagestore.Store
	descriptor Descriptor
	keySize    int
}

// OpenReader opens the index file at path. layout may be nil, the key size
// is then taken from the descriptor of the file.
func OpenReader(path string, layout Layout, opts ...pagestore.Option) (*Reader, error) {
	opts = append([]pagestore.Option{pagestore.WithReadOnly(true)}, opts...)
	store, err := pagestore.Open(path, opts...)
	if err != nil {
		return nil, err
	}

	r := &Reader{store: store}
	ok, err := store.ReadDescriptor(&r.descriptor)
	if err != nil {
		store.Close()
		return nil, err
	}

	switch {
	case ok && layout != nil && r.descriptor.Layout != layout.Name():
		store.Close()
		return nil, errors.Errorf("index %q uses layout %q, not %q",
			path, r.descriptor.Layout, layout.Name())
	case layout != nil:
		r.keySize = layout.KeySize()
	case ok:
		r.keySize = r.descriptor.KeySize
	}

	return r, nil
}

// Header returns the persisted outcome. ok is false if the index was never
// closed, which means the population did not finish.
func (r *Reader) Header() (h Header, ok bool, err error) {
	data, err := r.store.ReadHeader()
	if err != nil {
		return Header{}, false, err
	}
	if data == nil {
		return Header{}, false, nil
	}

	h, err = DecodeHeader(data)
	if err != nil {
		return Header{}, false, errors.Wrapf(err, "decode header of %q", r.store.Path())
	}
	return h, true, nil
}

func (r *Reader) Descriptor() Descriptor {
	return r.descriptor
}

func (r *Reader) Entries(fn func(e Entry) bool) error {
	if r.keySize == 0 {
		return errors.Errorf("unknown key size of %q", r.store.Path())
	}
	return scanEntries(r.store, r.keySize, fn)
}

func (r *Reader) Close() error {
	return r.store.Close()
}

// ReadHeader opens the index file only to read its header.
func ReadHeader(path string, opts ...pagestore.Option) (Header, bool, error) {
	r, err := OpenReader(path, nil, opts...)
	if err != nil {
		return Header{}, false, err
	}
	defer r.Close()

	return r.Header()
}

func scanEntries(store *pagestore.Store, keySize int, fn func(e Entry) bool) error {
	var decodeErr error
	err := store.Scan(func(k, v []byte) bool {
		e, err := entryFromStore(k, v, keySize)
		if err != nil {
			decodeErr = err
			return false
		}
		return fn(e)
	})
	if err != nil {
		return err
	}
	return decodeErr
}
