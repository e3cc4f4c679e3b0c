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
	"github.com/pkg/errors"
)

const (
	DefaultPageSize = 8192
	MinPageSize     = 1024
	MaxPageSize     = 65536
)

type Option func(s *Store) error

// WithPageSize sets the page size of newly created files. It also bounds the
// header capacity. Existing files keep the page size they were created with.
func WithPageSize(pageSize int) Option {
	return func(s *Store) error {
		if err := ValidatePageSize(pageSize); err != nil {
			return err
		}

		s.pageSize = pageSize
		return nil
	}
}

// WithNoSync skips fsync on every commit. Call Sync (or Close) to make
// previous writes durable.
func WithNoSync(noSync bool) Option {
	return func(s *Store) error {
		s.noSync = noSync
		return nil
	}
}

func WithReadOnly(readOnly bool) Option {
	return func(s *Store) error {
		s.readOnly = readOnly
		return nil
	}
}

func WithMappings(mappings *Mappings) Option {
	return func(s *Store) error {
		if mappings == nil {
			return errors.New("mappings must not be nil")
		}

		s.mappings = mappings
		return nil
	}
}

func WithFileSystem(fs FileSystem) Option {
	return func(s *Store) error {
		if fs == nil {
			return errors.New("file system must not be nil")
		}

		s.fs = fs
		return nil
	}
}

func ValidatePageSize(pageSize int) error {
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return errors.Errorf("page size %d out of range [%d, %d]",
			pageSize, MinPageSize, MaxPageSize)
	}
	if pageSize&(pageSize-1) != 0 {
		return errors.Errorf("page size %d is not a power of two", pageSize)
	}
	return nil
}
