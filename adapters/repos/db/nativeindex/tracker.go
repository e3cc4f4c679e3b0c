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
	"github.com/weaviate/sroar"
)

type trackedKey struct {
	conflictKey uint64
	key         []byte
}

// holders are the entities holding one conflict key. Most keys only ever
// have a single holder, which is kept inline. The bitmap is only allocated
// once a second holder arrives and is released again when one is left.
type holders struct {
	one  uint64
	many *sroar.Bitmap
}

func (h holders) contains(entityID uint64) bool {
	if h.many != nil {
		return h.many.Contains(entityID)
	}
	return h.one == entityID
}

func (h holders) toArray() []uint64 {
	if h.many != nil {
		return h.many.ToArray()
	}
	return []uint64{h.one}
}

type trackerOp struct {
	added    bool
	entityID uint64
	tracked  trackedKey
}

// Tracker is the in-memory view of which entities hold which conflict keys.
// It mirrors the entries of the store it is used with, so it can answer
// conflict questions without reading the store. It is owned by a single
// populator and is not safe for concurrent use.
//
// Changes made between begin and commit are journaled, so that they can be
// reverted if the store transaction they belong to does not commit.
type Tracker struct {
	byValue  map[uint64]holders
	byEntity map[uint64][]trackedKey
	size     int

	journaling bool
	journal    []trackerOp
}

func NewTracker() *Tracker {
	return &Tracker{
		byValue:  map[uint64]holders{},
		byEntity: map[uint64][]trackedKey{},
	}
}

// Len is the number of tracked (entity, key) pairs.
func (t *Tracker) Len() int {
	return t.size
}

// Holders returns the entities that currently hold conflictKey.
func (t *Tracker) Holders(conflictKey uint64) []uint64 {
	h, ok := t.byValue[conflictKey]
	if !ok {
		return nil
	}
	return h.toArray()
}

func (t *Tracker) Holds(entityID, conflictKey uint64) bool {
	h, ok := t.byValue[conflictKey]
	return ok && h.contains(entityID)
}

// firstHolderExcept returns any entity other than entityID holding
// conflictKey.
func (t *Tracker) firstHolderExcept(conflictKey, entityID uint64) (uint64, bool) {
	h, ok := t.byValue[conflictKey]
	if !ok {
		return 0, false
	}
	if h.many == nil {
		return h.one, h.one != entityID
	}
	for _, holder := range h.many.ToArray() {
		if holder != entityID {
			return holder, true
		}
	}
	return 0, false
}

func (t *Tracker) keysOf(entityID uint64) []trackedKey {
	return t.byEntity[entityID]
}

func (t *Tracker) add(entityID uint64, tk trackedKey) {
	h, ok := t.byValue[tk.conflictKey]
	switch {
	case !ok:
		t.byValue[tk.conflictKey] = holders{one: entityID}
	case h.many != nil:
		h.many.Set(entityID)
	case h.one != entityID:
		bm := sroar.NewBitmap()
		bm.Set(h.one)
		bm.Set(entityID)
		t.byValue[tk.conflictKey] = holders{many: bm}
	}
	t.byEntity[entityID] = append(t.byEntity[entityID], tk)
	t.size++

	if t.journaling {
		t.journal = append(t.journal, trackerOp{added: true, entityID: entityID, tracked: tk})
	}
}

// remove forgets that entityID holds conflictKey and returns the exact key it
// was tracked with.
func (t *Tracker) remove(entityID, conflictKey uint64) (trackedKey, bool) {
	keys := t.byEntity[entityID]
	pos := -1
	for i := range keys {
		if keys[i].conflictKey == conflictKey {
			pos = i
			break
		}
	}
	if pos < 0 {
		return trackedKey{}, false
	}

	tk := keys[pos]
	keys = append(keys[:pos], keys[pos+1:]...)
	if len(keys) == 0 {
		delete(t.byEntity, entityID)
	} else {
		t.byEntity[entityID] = keys
	}

	t.removeHolder(conflictKey, entityID)
	t.size--

	if t.journaling {
		t.journal = append(t.journal, trackerOp{added: false, entityID: entityID, tracked: tk})
	}
	return tk, true
}

func (t *Tracker) removeHolder(conflictKey, entityID uint64) {
	h, ok := t.byValue[conflictKey]
	if !ok {
		return
	}

	if h.many == nil {
		if h.one == entityID {
			delete(t.byValue, conflictKey)
		}
		return
	}

	h.many.Remove(entityID)
	switch h.many.GetCardinality() {
	case 0:
		delete(t.byValue, conflictKey)
	case 1:
		t.byValue[conflictKey] = holders{one: h.many.Minimum()}
	}
}

func (t *Tracker) begin() {
	t.journaling = true
	t.journal = t.journal[:0]
}

func (t *Tracker) commit() {
	t.journaling = false
	t.journal = t.journal[:0]
}

// rollback reverts every change since begin.
func (t *Tracker) rollback() {
	t.journaling = false
	for i := len(t.journal) - 1; i >= 0; i-- {
		op := t.journal[i]
		if op.added {
			t.remove(op.entityID, op.tracked.conflictKey)
		} else {
			t.add(op.entityID, op.tracked)
		}
	}
	t.journal = t.journal[:0]
}
