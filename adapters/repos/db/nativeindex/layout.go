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
	"math"

	"github.com/pkg/errors"
)

// Layout turns property values into the opaque, comparable key bytes that
// end up in the store. The populator never looks inside a key, it only asks
// the layout for the projection used to detect conflicts.
type Layout interface {
	// Name is persisted in the index descriptor.
	Name() string
	KeySize() int
	Encode(v Value) []byte
	Decode(key []byte) (Value, error)
	// ConflictKey returns the identity used for uniqueness checks. Two keys
	// conflict if and only if their conflict keys are equal.
	ConflictKey(key []byte) (uint64, error)
}

var ErrInvalidKey = errors.New("invalid key")

const (
	numberKeySize = 17
	signBit       = uint64(1) << 63
)

// NumberLayout encodes numbers as
//
//	[0:8]   order preserving bits of the float64 projection
//	[8]     NumberType
//	[9:17]  order preserving bits of the exact value
//
// so keys sort by numeric value. Conflicts are detected on the float64
// projection: two integers that round to the same double are considered
// equal even though both are stored exactly.
type NumberLayout struct{}

func (NumberLayout) Name() string {
	return "number"
}

func (NumberLayout) KeySize() int {
	return numberKeySize
}

func (NumberLayout) Encode(v Value) []byte {
	key := make([]byte, numberKeySize)
	binary.BigEndian.PutUint64(key[0:8], sortableFloatBits(math.Float64bits(v.Float64())))
	key[8] = byte(v.typ)
	binary.BigEndian.PutUint64(key[9:17], sortableRaw(v))
	return key
}

func (NumberLayout) Decode(key []byte) (Value, error) {
	if len(key) != numberKeySize {
		return Value{}, errors.Wrapf(ErrInvalidKey, "expected %d bytes, got %d", numberKeySize, len(key))
	}

	typ := NumberType(key[8])
	if !typ.valid() {
		return Value{}, errors.Wrapf(ErrInvalidKey, "unknown number type %d", key[8])
	}

	v := Value{typ: typ}
	sortable := binary.BigEndian.Uint64(key[9:17])
	if typ.isInteger() {
		v.raw = sortable ^ signBit
	} else {
		v.raw = floatBitsFromSortable(sortable)
	}
	return v, nil
}

func (NumberLayout) ConflictKey(key []byte) (uint64, error) {
	if len(key) != numberKeySize {
		return 0, errors.Wrapf(ErrInvalidKey, "expected %d bytes, got %d", numberKeySize, len(key))
	}
	return floatBitsFromSortable(binary.BigEndian.Uint64(key[0:8])), nil
}

func sortableRaw(v Value) uint64 {
	switch v.typ {
	case TypeFloat32, TypeFloat64:
		return sortableFloatBits(v.raw)
	default:
		return v.raw ^ signBit
	}
}

// sortableFloatBits maps IEEE 754 bits onto unsigned integers with the same
// order as the floats they represent.
func sortableFloatBits(bits uint64) uint64 {
	if bits&signBit != 0 {
		return ^bits
	}
	return bits | signBit
}

func floatBitsFromSortable(sortable uint64) uint64 {
	if sortable&signBit != 0 {
		return sortable &^ signBit
	}
	return ^sortable
}
