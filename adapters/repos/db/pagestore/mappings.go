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
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var ErrAlreadyMapped = errors.New("file already mapped")

// Mappings keeps track of every store file that is currently open, much like
// a page cache knows which files it has mapped. A file can only be mapped
// once at a time.
type Mappings struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewMappings() *Mappings {
	return &Mappings{
		stores: make(map[string]*Store),
	}
}

// DefaultMappings is used by every store that was not given its own
// registry through WithMappings.
var DefaultMappings = NewMappings()

func (m *Mappings) tryAdd(s *Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stores[s.path]; ok {
		return errors.Wrapf(ErrAlreadyMapped, "store %q", s.path)
	}

	m.stores[s.path] = s
	return nil
}

func (m *Mappings) remove(s *Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.stores[s.path]; ok && existing == s {
		delete(m.stores, s.path)
	}
}

// ExistingMapping returns the open store for the given file, if any.
func (m *Mappings) ExistingMapping(path string) (*Store, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[abs]
	return s, ok
}

func (m *Mappings) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.stores)
}
