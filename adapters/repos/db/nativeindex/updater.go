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

// PopulatingUpdater applies online updates while the index is populated.
// Each updater is single use: after Close every call to Process fails.
type PopulatingUpdater struct {
	populator *Populator
	accessor  PropertyAccessor
	closed    bool
}

// Process applies a single update. Nothing is buffered, so an update that
// returned without error is part of the index.
func (u *PopulatingUpdater) Process(update EntryUpdate) error {
	if u.closed {
		return &UsageError{
			Op:     string(opProcess),
			Phase:  u.populator.phase,
			Reason: "process after close",
		}
	}

	return u.populator.process(update, u.accessor)
}

// Close releases the updater. Closing twice is a no-op.
func (u *PopulatingUpdater) Close() {
	u.closed = true
}
