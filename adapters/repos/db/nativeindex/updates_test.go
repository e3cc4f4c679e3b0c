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
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulatorUniqueness(t *testing.T) {
	t.Run("unique index rejects equal values of different entities", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true))
		require.Nil(t, ti.populator.Create())

		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(5))}))
		err := ti.populator.Add([]EntryUpdate{add(2, int64(5))})

		require.True(t, IsConflict(err))
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, uint64(1), conflict.ExistingEntityID)
		assert.Equal(t, uint64(2), conflict.AddedEntityID)

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(1, int64(5))})
	})

	t.Run("values of different types compare by number", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true))
		require.Nil(t, ti.populator.Create())

		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int8(3))}))

		assert.True(t, IsConflict(ti.populator.Add([]EntryUpdate{add(2, int64(3))})))
		assert.True(t, IsConflict(ti.populator.Add([]EntryUpdate{add(3, float64(3))})))
		assert.True(t, IsConflict(ti.populator.Add([]EntryUpdate{add(4, float32(3))})))
		assert.Nil(t, ti.populator.Add([]EntryUpdate{add(5, 3.5)}))
		require.Nil(t, ti.populator.Close(true))
	})

	t.Run("large integers collapsing to one double conflict", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true))
		require.Nil(t, ti.populator.Create())

		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(1<<53))}))
		err := ti.populator.Add([]EntryUpdate{add(2, int64(1<<53+1))})

		assert.True(t, IsConflict(err))
		require.Nil(t, ti.populator.Close(false))
	})

	t.Run("non unique index accepts equal values of different entities", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())
		updates := []EntryUpdate{add(1, int64(5)), add(2, int64(5)), add(3, 5.0)}

		require.Nil(t, ti.populator.Add(updates))

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, updates)
	})

	t.Run("rejected bulk update keeps the applied prefix", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true))
		require.Nil(t, ti.populator.Create())

		err := ti.populator.Add([]EntryUpdate{
			add(1, int64(5)), add(2, int64(6)), add(3, int64(5)), add(4, int64(7)),
		})
		require.True(t, IsConflict(err))

		// the tracker agrees with the store about the prefix
		assert.True(t, IsConflict(ti.populator.Add([]EntryUpdate{add(5, int64(6))})))
		require.Nil(t, ti.populator.Add([]EntryUpdate{add(4, int64(7))}))

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(1, int64(5)), add(2, int64(6)), add(4, int64(7))})
	})

	t.Run("removed value can be taken by another entity", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true))
		require.Nil(t, ti.populator.Create())

		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(5))}))
		require.Nil(t, ti.populator.Add([]EntryUpdate{
			Remove(1, keyOf(int64(5))),
			add(2, int64(5)),
		}))

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(2, int64(5))})
	})

	t.Run("duplicate entry of the same entity is a conflict in any index", func(t *testing.T) {
		for _, unique := range []bool{true, false} {
			ti := newTestIndex(t, WithUnique(unique))
			require.Nil(t, ti.populator.Create())

			err := ti.populator.Add([]EntryUpdate{add(1, int64(5)), add(1, int64(5))})

			assert.True(t, IsConflict(err))
			require.Nil(t, ti.populator.Close(false))
			ti.verifyUpdates(t, []EntryUpdate{add(1, int64(5))})
		}
	})
}

func TestPopulatorChangeAndRemove(t *testing.T) {
	t.Run("change moves the entity to its new key", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true))
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(5))}))

		updater, err := ti.populator.NewPopulatingUpdater(nullPropertyAccessor)
		require.Nil(t, err)
		require.Nil(t, updater.Process(Change(1, keyOf(int64(5)), keyOf(int64(8)))))
		updater.Close()

		// the old value is free again
		require.Nil(t, ti.populator.Add([]EntryUpdate{add(2, int64(5))}))
		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(1, int64(8)), add(2, int64(5))})
	})

	t.Run("change to the same value is accepted", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true), WithSameEntityPolicy(SameEntityReject))
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(5))}))

		require.Nil(t, ti.populator.Add([]EntryUpdate{Change(1, keyOf(int64(5)), keyOf(5.0))}))

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(1, 5.0)})
	})

	t.Run("change to a value of another entity conflicts and changes nothing", func(t *testing.T) {
		ti := newTestIndex(t, WithUnique(true))
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(5)), add(2, int64(6))}))

		err := ti.populator.Add([]EntryUpdate{Change(1, keyOf(int64(5)), keyOf(int64(6)))})

		assert.True(t, IsConflict(err))
		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(1, int64(5)), add(2, int64(6))})
	})

	t.Run("change without before key is invalid", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())

		err := ti.populator.Add([]EntryUpdate{Change(1, nil, keyOf(int64(6)))})

		assert.True(t, errors.Is(err, ErrInvalidUpdate))
		require.Nil(t, ti.populator.Close(false))
	})

	t.Run("malformed keys are invalid", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())

		err := ti.populator.Add([]EntryUpdate{Add(1, []byte{1, 2, 3})})
		assert.True(t, errors.Is(err, ErrInvalidUpdate))

		err = ti.populator.Add([]EntryUpdate{{EntityID: 1, Key: keyOf(int64(1))}})
		assert.True(t, errors.Is(err, ErrInvalidUpdate))

		require.Nil(t, ti.populator.Close(false))
		assert.Empty(t, ti.entries(t))
	})

	t.Run("removing an absent entry is a no-op", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(5))}))

		require.Nil(t, ti.populator.Add([]EntryUpdate{
			Remove(1, keyOf(int64(6))),
			Remove(2, keyOf(int64(5))),
		}))

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(1, int64(5))})
	})

	t.Run("remove without key resolves the value through the accessor", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(5)), add(2, int64(6))}))

		asked := []uint64{}
		accessor := PropertyAccessorFunc(func(entityID uint64) (Value, error) {
			asked = append(asked, entityID)
			return Int64(5), nil
		})
		err := ti.populator.WithPopulatingUpdater(accessor, func(u *PopulatingUpdater) error {
			return u.Process(Remove(1, nil))
		})
		require.Nil(t, err)

		assert.Equal(t, []uint64{1}, asked)
		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(2, int64(6))})
	})

	t.Run("accessor errors are returned", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())
		updater, err := ti.populator.NewPopulatingUpdater(nullPropertyAccessor)
		require.Nil(t, err)
		defer updater.Close()

		err = updater.Process(Remove(1, nil))

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "did not expect an attempt to go to store")
		require.Nil(t, ti.populator.Close(false))
	})

	t.Run("bulk remove without key is invalid", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())

		err := ti.populator.Add([]EntryUpdate{Remove(1, nil)})

		assert.True(t, errors.Is(err, ErrInvalidUpdate))
		require.Nil(t, ti.populator.Close(false))
	})
}

func TestSameEntityPolicy(t *testing.T) {
	updates := []EntryUpdate{add(1, int64(5)), add(1, int64(6))}

	t.Run("allow keeps every entry", func(t *testing.T) {
		ti := newTestIndex(t, WithSameEntityPolicy(SameEntityAllow))
		require.Nil(t, ti.populator.Create())

		require.Nil(t, ti.populator.Add(updates))

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, updates)
	})

	t.Run("overwrite keeps the last entry", func(t *testing.T) {
		ti := newTestIndex(t, WithSameEntityPolicy(SameEntityOverwrite))
		require.Nil(t, ti.populator.Create())

		require.Nil(t, ti.populator.Add(updates))

		require.Nil(t, ti.populator.Close(true))
		ti.verifyUpdates(t, []EntryUpdate{add(1, int64(6))})
	})

	t.Run("reject fails the second entry", func(t *testing.T) {
		ti := newTestIndex(t, WithSameEntityPolicy(SameEntityReject))
		require.Nil(t, ti.populator.Create())

		err := ti.populator.Add(updates)

		require.True(t, IsConflict(err))
		require.Nil(t, ti.populator.Close(false))
		ti.verifyUpdates(t, []EntryUpdate{add(1, int64(5))})
	})

	t.Run("mixed case policy is applied", func(t *testing.T) {
		ti := newTestIndex(t, WithSameEntityPolicy("Reject"))
		require.Nil(t, ti.populator.Create())

		err := ti.populator.Add(updates)

		require.True(t, IsConflict(err))
		require.Nil(t, ti.populator.Close(false))
		assert.Equal(t, "reject", ti.openReader(t).Descriptor().SameEntityPolicy)
	})

	t.Run("policies are validated", func(t *testing.T) {
		p, err := ValidateSameEntityPolicy("Overwrite")
		require.Nil(t, err)
		assert.Equal(t, SameEntityOverwrite, p)

		_, err = ValidateSameEntityPolicy("sometimes")
		assert.NotNil(t, err)

		_, err = NewPopulator("index.db", testLayout, WithSameEntityPolicy("sometimes"))
		assert.NotNil(t, err)
	})
}

func TestLargeAmountOfInterleavedRandomUpdates(t *testing.T) {
	ti := newTestIndex(t, WithUnique(true))
	require.Nil(t, ti.populator.Create())
	r := rand.New(rand.NewSource(1234))

	updater, err := ti.populator.NewPopulatingUpdater(nullPropertyAccessor)
	require.Nil(t, err)

	seen := map[uint64]struct{}{}
	var expected []EntryUpdate
	var batch []EntryUpdate
	for entityID := uint64(0); len(expected)+len(batch) < largeAmountOfUpdates; entityID++ {
		key := testLayout.Encode(randomValue(r))
		ck, err := testLayout.ConflictKey(key)
		require.Nil(t, err)
		if _, ok := seen[ck]; ok {
			continue
		}
		seen[ck] = struct{}{}

		u := Add(entityID, key)
		if r.Float64() < interleavedUpdaterFraction {
			require.Nil(t, updater.Process(u))
			expected = append(expected, u)
			continue
		}

		batch = append(batch, u)
		if len(batch) == 50 {
			require.Nil(t, ti.populator.Add(batch))
			expected = append(expected, batch...)
			batch = nil
		}
	}
	require.Nil(t, ti.populator.Add(batch))
	expected = append(expected, batch...)

	updater.Close()
	require.Nil(t, ti.populator.Close(true))

	ti.assertOnline(t)
	ti.verifyUpdates(t, expected)

	entries := ti.entries(t)
	for i := 1; i < len(entries); i++ {
		prev, err := testLayout.Decode(entries[i-1].Key)
		require.Nil(t, err)
		cur, err := testLayout.Decode(entries[i].Key)
		require.Nil(t, err)
		assert.LessOrEqual(t, prev.Float64(), cur.Float64(), "entries must be in value order")
	}
}

func randomValue(r *rand.Rand) Value {
	switch r.Intn(6) {
	case 0:
		return Int8(int8(r.Intn(math.MaxUint8+1) + math.MinInt8))
	case 1:
		return Int16(int16(r.Intn(math.MaxUint16+1) + math.MinInt16))
	case 2:
		return Int32(int32(r.Uint32()))
	case 3:
		return Int64(int64(r.Uint64()))
	case 4:
		return Float32(float32(r.NormFloat64() * 1e6))
	default:
		return Float64(r.NormFloat64() * 1e12)
	}
}
