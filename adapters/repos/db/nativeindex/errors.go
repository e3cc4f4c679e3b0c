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

	"github.com/pkg/errors"
	"github.com/weaviate/nativeindex/entities/indexstate"
)

var (
	ErrIllegalUse    = errors.New("illegal use")
	ErrConflict      = errors.New("index entry conflict")
	ErrInvalidUpdate = errors.New("invalid entry update")
)

// UsageError is returned for any call that is not allowed in the current
// lifecycle phase. It never changes persisted state.
type UsageError struct {
	Op     string
	Phase  indexstate.Phase
	Reason string
}

func (e *UsageError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("illegal use: %s in phase %s: %s", e.Op, e.Phase, e.Reason)
	}
	return fmt.Sprintf("illegal use: %s in phase %s", e.Op, e.Phase)
}

func (e *UsageError) Is(target error) bool {
	return target == ErrIllegalUse
}

// ConflictError reports two entities whose keys the index considers equal.
// ExistingEntityID and AddedEntityID are the same for a duplicate entry or a
// rejected second key of the same entity.
type ConflictError struct {
	ExistingEntityID uint64
	AddedEntityID    uint64
	Key              []byte
	Value            Value
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: entities %d and %d both have value %s (key %x)",
		ErrConflict, e.ExistingEntityID, e.AddedEntityID, e.Value, e.Key)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func IsUsageError(err error) bool {
	return errors.Is(err, ErrIllegalUse)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func invalidUpdate(u EntryUpdate, reason string) error {
	return errors.Wrapf(ErrInvalidUpdate, "%s: %s", u, reason)
}
