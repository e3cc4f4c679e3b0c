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
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
	"github.com/weaviate/nativeindex/adapters/repos/db/pagestore"
)

// SameEntityPolicy decides what happens when an entity that already has an
// entry is added under a second, different key.
type SameEntityPolicy string

const (
	// SameEntityAllow keeps both entries.
	SameEntityAllow SameEntityPolicy = "allow"
	// SameEntityOverwrite removes the previous entries of the entity.
	SameEntityOverwrite SameEntityPolicy = "overwrite"
	// SameEntityReject fails the update with a ConflictError.
	SameEntityReject SameEntityPolicy = "reject"
)

func ValidateSameEntityPolicy(in string) (SameEntityPolicy, error) {
	switch p := SameEntityPolicy(strings.ToLower(in)); p {
	case SameEntityAllow, SameEntityOverwrite, SameEntityReject:
		return p, nil
	default:
		return "", errors.Errorf("invalid same entity policy %q", in)
	}
}

// PropertyAccessor resolves the current property value of an entity. It is
// only consulted for updates that do not carry the key they refer to.
type PropertyAccessor interface {
	PropertyValue(entityID uint64) (Value, error)
}

type PropertyAccessorFunc func(entityID uint64) (Value, error)

func (f PropertyAccessorFunc) PropertyValue(entityID uint64) (Value, error) {
	return f(entityID)
}

const entityIDSize = 8

func storeKey(key []byte, entityID uint64) []byte {
	out := make([]byte, len(key)+entityIDSize)
	copy(out, key)
	binary.BigEndian.PutUint64(out[len(key):], entityID)
	return out
}

func storeValue(entityID uint64) []byte {
	out := make([]byte, entityIDSize)
	binary.BigEndian.PutUint64(out, entityID)
	return out
}

// entryFromStore recovers the (entity, key) pair of a raw store entry. The
// returned key is a copy.
func entryFromStore(k, v []byte, keySize int) (Entry, error) {
	if len(k) != keySize+entityIDSize || len(v) != entityIDSize {
		return Entry{}, errors.Wrapf(ErrInvalidKey, "store entry with %d key and %d value bytes", len(k), len(v))
	}

	entityID := binary.BigEndian.Uint64(k[keySize:])
	if fromValue := binary.BigEndian.Uint64(v); fromValue != entityID {
		return Entry{}, errors.Wrapf(ErrInvalidKey, "entity %d in key, %d in value", entityID, fromValue)
	}

	key := make([]byte, keySize)
	copy(key, k[:keySize])
	return Entry{EntityID: entityID, Key: key}, nil
}

// applier applies entry updates to a store batch and the tracker in lock
// step. Every check that can reject an update runs before the first change,
// so a rejected update leaves both untouched.
type applier struct {
	layout  Layout
	unique  bool
	policy  SameEntityPolicy
	tracker *Tracker
}

func (a *applier) apply(b *pagestore.Batch, u EntryUpdate, accessor PropertyAccessor) error {
	switch u.Mode {
	case ModeAdd:
		if u.Key == nil {
			return invalidUpdate(u, "add without key")
		}
		ck, err := a.conflictKey(u, u.Key)
		if err != nil {
			return err
		}
		return a.insert(b, u.EntityID, u.Key, ck)

	case ModeChange:
		if u.Before == nil {
			return invalidUpdate(u, "change without before key")
		}
		if u.Key == nil {
			return invalidUpdate(u, "change without key")
		}
		before, err := a.conflictKey(u, u.Before)
		if err != nil {
			return err
		}
		after, err := a.conflictKey(u, u.Key)
		if err != nil {
			return err
		}
		if err := a.check(u.EntityID, u.Key, after, &before); err != nil {
			return err
		}
		if err := a.delete(b, u.EntityID, before); err != nil {
			return err
		}
		return a.insert(b, u.EntityID, u.Key, after)

	case ModeRemove:
		key := u.Key
		if key == nil {
			if accessor == nil {
				return invalidUpdate(u, "remove without key requires a property accessor")
			}
			v, err := accessor.PropertyValue(u.EntityID)
			if err != nil {
				return errors.Wrapf(err, "resolve value of entity %d", u.EntityID)
			}
			key = a.layout.Encode(v)
		}
		ck, err := a.conflictKey(u, key)
		if err != nil {
			return err
		}
		return a.delete(b, u.EntityID, ck)

	default:
		return invalidUpdate(u, "unknown mode")
	}
}

func (a *applier) conflictKey(u EntryUpdate, key []byte) (uint64, error) {
	ck, err := a.layout.ConflictKey(key)
	if err != nil {
		return 0, invalidUpdate(u, err.Error())
	}
	return ck, nil
}

// check returns a ConflictError if entityID may not be added under key.
// releasing is a conflict key of the entity that is removed as part of the
// same update.
func (a *applier) check(entityID uint64, key []byte, ck uint64, releasing *uint64) error {
	released := func(other uint64) bool {
		return releasing != nil && *releasing == other
	}

	if a.tracker.Holds(entityID, ck) && !released(ck) {
		return a.conflict(entityID, entityID, key)
	}

	if a.unique {
		if holder, ok := a.tracker.firstHolderExcept(ck, entityID); ok {
			return a.conflict(holder, entityID, key)
		}
	}

	if a.policy == SameEntityReject {
		for _, tk := range a.tracker.keysOf(entityID) {
			if !released(tk.conflictKey) {
				return a.conflict(entityID, entityID, key)
			}
		}
	}

	return nil
}

func (a *applier) conflict(existing, added uint64, key []byte) error {
	v, _ := a.layout.Decode(key)
	return &ConflictError{
		ExistingEntityID: existing,
		AddedEntityID:    added,
		Key:              key,
		Value:            v,
	}
}

func (a *applier) insert(b *pagestore.Batch, entityID uint64, key []byte, ck uint64) error {
	if err := a.check(entityID, key, ck, nil); err != nil {
		return err
	}

	if a.policy == SameEntityOverwrite {
		previous := append([]trackedKey(nil), a.tracker.keysOf(entityID)...)
		for _, tk := range previous {
			if err := a.delete(b, entityID, tk.conflictKey); err != nil {
				return err
			}
		}
	}

	if err := b.Put(storeKey(key, entityID), storeValue(entityID)); err != nil {
		return errors.Wrapf(err, "put entry of entity %d", entityID)
	}

	owned := make([]byte, len(key))
	copy(owned, key)
	a.tracker.add(entityID, trackedKey{conflictKey: ck, key: owned})
	return nil
}

// delete removes the entry of entityID under ck. Removing an entry that does
// not exist is a no-op.
func (a *applier) delete(b *pagestore.Batch, entityID, ck uint64) error {
	tk, ok := a.tracker.remove(entityID, ck)
	if !ok {
		return nil
	}

	if err := b.Delete(storeKey(tk.key, entityID)); err != nil {
		return errors.Wrapf(err, "delete entry of entity %d", entityID)
	}
	return nil
}
