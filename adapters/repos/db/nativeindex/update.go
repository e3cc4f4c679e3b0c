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
	"fmt"
)

type UpdateMode int

const (
	ModeAdd UpdateMode = iota + 1
	ModeChange
	ModeRemove
)

func (m UpdateMode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeChange:
		return "change"
	case ModeRemove:
		return "remove"
	default:
		return fmt.Sprintf("UpdateMode(%d)", int(m))
	}
}

// EntryUpdate is a single requested change to the index. Key is the encoded
// key the entity should be found under after the update (for ModeRemove the
// key to remove), Before is the key an entity is currently found under and is
// only set for ModeChange.
type EntryUpdate struct {
	EntityID uint64
	Mode     UpdateMode
	Key      []byte
	Before   []byte
}

func Add(entityID uint64, key []byte) EntryUpdate {
	return EntryUpdate{EntityID: entityID, Mode: ModeAdd, Key: key}
}

func Change(entityID uint64, before, after []byte) EntryUpdate {
	return EntryUpdate{EntityID: entityID, Mode: ModeChange, Key: after, Before: before}
}

// Remove removes the entry of entityID under key. A nil key asks the
// populating updater to resolve the current value through its property
// accessor.
func Remove(entityID uint64, key []byte) EntryUpdate {
	return EntryUpdate{EntityID: entityID, Mode: ModeRemove, Key: key}
}

func (u EntryUpdate) String() string {
	if u.Mode == ModeChange {
		return fmt.Sprintf("%s(entity=%d, before=%x, after=%x)", u.Mode, u.EntityID, u.Before, u.Key)
	}
	return fmt.Sprintf("%s(entity=%d, key=%x)", u.Mode, u.EntityID, u.Key)
}

// Entry is a single (entity, key) pair as it is recovered from the store.
type Entry struct {
	EntityID uint64
	Key      []byte
}
