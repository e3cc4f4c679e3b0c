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
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/weaviate/nativeindex/entities/indexstate"
)

const (
	headerStateSize  = 1
	headerLengthSize = 2
	// HeaderFailedPrefixSize is the fixed part of a failed header, the
	// failure message follows directly after it.
	HeaderFailedPrefixSize = headerStateSize + headerLengthSize
)

var (
	ErrHeaderCapacity  = errors.New("header capacity too small")
	ErrHeaderTruncated = errors.New("header truncated")
)

// Header is the outcome of a population as it is persisted in the index file.
// FailureMessage is always empty for an online index.
type Header struct {
	State          indexstate.State
	FailureMessage string
}

func OnlineHeader() Header {
	return Header{State: indexstate.StateOnline}
}

func FailedHeader(message string) Header {
	return Header{State: indexstate.StateFailed, FailureMessage: message}
}

// EncodeInto writes the header into buf, whose length is the capacity of the
// header. A failure message that does not fit is cut at the last complete
// UTF-8 character that does. It returns the number of bytes written.
func (h Header) EncodeInto(buf []byte) (int, error) {
	switch h.State {
	case indexstate.StateOnline:
		if h.FailureMessage != "" {
			return 0, errors.New("online header must not carry a failure message")
		}
		if len(buf) < headerStateSize {
			return 0, errors.Wrapf(ErrHeaderCapacity, "%d bytes", len(buf))
		}
		buf[0] = byte(indexstate.StateOnline)
		return headerStateSize, nil

	case indexstate.StateFailed:
		if len(buf) < HeaderFailedPrefixSize {
			return 0, errors.Wrapf(ErrHeaderCapacity, "%d bytes", len(buf))
		}
		msg := truncateUTF8(strings.ToValidUTF8(h.FailureMessage, string(utf8.RuneError)),
			maxFailureMessageLen(len(buf)))

		buf[0] = byte(indexstate.StateFailed)
		binary.BigEndian.PutUint16(buf[headerStateSize:], uint16(len(msg)))
		n := copy(buf[HeaderFailedPrefixSize:], msg)
		return HeaderFailedPrefixSize + n, nil

	default:
		return 0, errors.Wrapf(indexstate.ErrInvalidState, "%d", byte(h.State))
	}
}

// EncodeHeader returns the encoded header for a header area of the given
// capacity.
func EncodeHeader(h Header, capacity int) ([]byte, error) {
	buf := make([]byte, capacity)
	n, err := h.EncodeInto(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// DecodeHeader reads a header from data. Bytes after the encoded header are
// ignored, so data may be the full header area.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < headerStateSize {
		return Header{}, errors.Wrap(ErrHeaderTruncated, "missing state")
	}

	state, err := indexstate.ValidateState(data[0])
	if err != nil {
		return Header{}, errors.Wrapf(err, "%d", data[0])
	}

	if state == indexstate.StateOnline {
		return OnlineHeader(), nil
	}

	if len(data) < HeaderFailedPrefixSize {
		return Header{}, errors.Wrap(ErrHeaderTruncated, "missing failure message length")
	}
	length := int(binary.BigEndian.Uint16(data[headerStateSize:]))
	if len(data) < HeaderFailedPrefixSize+length {
		return Header{}, errors.Wrapf(ErrHeaderTruncated,
			"failure message of %d bytes, only %d available", length, len(data)-HeaderFailedPrefixSize)
	}

	msg := data[HeaderFailedPrefixSize : HeaderFailedPrefixSize+length]
	return FailedHeader(strings.ToValidUTF8(string(msg), string(utf8.RuneError))), nil
}

func maxFailureMessageLen(capacity int) int {
	max := capacity - HeaderFailedPrefixSize
	if max > math.MaxUint16 {
		max = math.MaxUint16
	}
	return max
}

// truncateUTF8 cuts s to at most max bytes without splitting a character.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
