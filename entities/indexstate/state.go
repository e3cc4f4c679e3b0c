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

package indexstate

import "errors"

// State is the outcome of a population attempt as it is persisted in the
// first byte of the index header.
type State byte

const (
	StateFailed State = 0
	StateOnline State = 1
)

var ErrInvalidState = errors.New("invalid index header state")

func (s State) String() string {
	switch s {
	case StateFailed:
		return "FAILED"
	case StateOnline:
		return "ONLINE"
	default:
		return "UNKNOWN"
	}
}

func ValidateState(in byte) (state State, err error) {
	switch State(in) {
	case StateFailed:
		state = StateFailed
	case StateOnline:
		state = StateOnline
	default:
		err = ErrInvalidState
	}

	return
}

// Phase is the in-memory lifecycle of a populator. Only the populator moves
// between phases, ClosedOnline, ClosedFailed and Dropped are terminal.
type Phase int

const (
	PhaseCreated Phase = iota
	PhasePopulating
	PhaseClosedOnline
	PhaseClosedFailed
	PhaseDropped
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "CREATED"
	case PhasePopulating:
		return "POPULATING"
	case PhaseClosedOnline:
		return "CLOSED_ONLINE"
	case PhaseClosedFailed:
		return "CLOSED_FAILED"
	case PhaseDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further mutation is permitted in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseClosedOnline || p == PhaseClosedFailed || p == PhaseDropped
}
