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
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type NumberType byte

const (
	TypeInt8 NumberType = iota + 1
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
)

func (t NumberType) String() string {
	switch t {
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	default:
		return fmt.Sprintf("NumberType(%d)", byte(t))
	}
}

func (t NumberType) isInteger() bool {
	return t >= TypeInt8 && t <= TypeInt64
}

func (t NumberType) valid() bool {
	return t >= TypeInt8 && t <= TypeFloat64
}

// Value is an exactly typed numeric property value. Integers keep their full
// 64 bit precision, only Float64 projects them onto a double.
type Value struct {
	typ NumberType
	raw uint64
}

func Int8(v int8) Value   { return Value{typ: TypeInt8, raw: uint64(int64(v))} }
func Int16(v int16) Value { return Value{typ: TypeInt16, raw: uint64(int64(v))} }
func Int32(v int32) Value { return Value{typ: TypeInt32, raw: uint64(int64(v))} }
func Int64(v int64) Value { return Value{typ: TypeInt64, raw: uint64(v)} }

func Float32(v float32) Value {
	return Value{typ: TypeFloat32, raw: uint64(math.Float32bits(v))}
}

func Float64(v float64) Value {
	return Value{typ: TypeFloat64, raw: math.Float64bits(v)}
}

// Of converts a Go number into a Value.
func Of(in interface{}) (Value, error) {
	switch v := in.(type) {
	case Value:
		return v, nil
	case int8:
		return Int8(v), nil
	case int16:
		return Int16(v), nil
	case int32:
		return Int32(v), nil
	case int64:
		return Int64(v), nil
	case int:
		return Int64(int64(v)), nil
	case uint8:
		return Int16(int16(v)), nil
	case uint16:
		return Int32(int32(v)), nil
	case uint32:
		return Int64(int64(v)), nil
	case float32:
		return Float32(v), nil
	case float64:
		return Float64(v), nil
	default:
		return Value{}, errors.Errorf("unsupported number type %T", in)
	}
}

// ParseValue parses s as a number of the named type. Without a type name,
// integers are parsed as int64 and everything else as float64.
func ParseValue(s, typeName string) (Value, error) {
	s = strings.TrimSpace(s)
	bits := map[string]int{"int8": 8, "int16": 16, "int32": 32, "int64": 64}

	switch typeName = strings.ToLower(strings.TrimSpace(typeName)); typeName {
	case "":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int64(i), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parse %q as number", s)
		}
		return Float64(f), nil
	case "int8", "int16", "int32", "int64":
		i, err := strconv.ParseInt(s, 10, bits[typeName])
		if err != nil {
			return Value{}, errors.Wrapf(err, "parse %q as %s", s, typeName)
		}
		switch typeName {
		case "int8":
			return Int8(int8(i)), nil
		case "int16":
			return Int16(int16(i)), nil
		case "int32":
			return Int32(int32(i)), nil
		default:
			return Int64(i), nil
		}
	case "float32":
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parse %q as float32", s)
		}
		return Float32(float32(f)), nil
	case "float64":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parse %q as float64", s)
		}
		return Float64(f), nil
	default:
		return Value{}, errors.Errorf("unknown number type %q", typeName)
	}
}

func (v Value) Type() NumberType {
	return v.typ
}

func (v Value) IsZero() bool {
	return v.typ == 0
}

// Int64 returns the exact integer, ok is false for floating point values.
func (v Value) Int64() (int64, bool) {
	if !v.typ.isInteger() {
		return 0, false
	}
	return int64(v.raw), true
}

// Float64 is the double precision projection of the value. Distinct large
// integers can share the same projection.
func (v Value) Float64() float64 {
	switch v.typ {
	case TypeFloat32:
		return float64(math.Float32frombits(uint32(v.raw)))
	case TypeFloat64:
		return math.Float64frombits(v.raw)
	default:
		return float64(int64(v.raw))
	}
}

func (v Value) String() string {
	if i, ok := v.Int64(); ok {
		return fmt.Sprintf("%d", i)
	}
	if v.typ == TypeFloat32 {
		return fmt.Sprintf("%v", math.Float32frombits(uint32(v.raw)))
	}
	return fmt.Sprintf("%v", v.Float64())
}
