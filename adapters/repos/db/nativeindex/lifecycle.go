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
	"github.com/weaviate/nativeindex/entities/indexstate"
)

type operation string

const (
	opCreate       operation = "create"
	opAdd          operation = "add"
	opNewUpdater   operation = "new populating updater"
	opProcess      operation = "process"
	opMarkAsFailed operation = "mark as failed"
	opCloseOnline  operation = "close successfully"
	opCloseFailed  operation = "close unsuccessfully"
	opDrop         operation = "drop"
)

type transition struct {
	to indexstate.Phase
	// guard rejects an otherwise permitted transition with the returned
	// reason.
	guard func(p *Populator) string
}

func stay(phase indexstate.Phase) transition {
	return transition{to: phase}
}

func notMarkedAsFailed(p *Populator) string {
	if p.failed {
		return "cannot close successfully after being marked as failed"
	}
	return ""
}

// lifecycle lists every permitted (phase, operation) pair and the phase it
// leads to. Anything missing is a UsageError.
var lifecycle = map[indexstate.Phase]map[operation]transition{
	indexstate.PhaseCreated: {
		opCreate:       {to: indexstate.PhasePopulating},
		opMarkAsFailed: stay(indexstate.PhaseCreated),
		opDrop:         {to: indexstate.PhaseDropped},
	},
	indexstate.PhasePopulating: {
		opAdd:          stay(indexstate.PhasePopulating),
		opNewUpdater:   stay(indexstate.PhasePopulating),
		opProcess:      stay(indexstate.PhasePopulating),
		opMarkAsFailed: stay(indexstate.PhasePopulating),
		opCloseOnline:  {to: indexstate.PhaseClosedOnline, guard: notMarkedAsFailed},
		opCloseFailed:  {to: indexstate.PhaseClosedFailed},
		opDrop:         {to: indexstate.PhaseDropped},
	},
	indexstate.PhaseClosedOnline: {
		opDrop: {to: indexstate.PhaseDropped},
	},
	indexstate.PhaseClosedFailed: {
		opDrop: {to: indexstate.PhaseDropped},
	},
	indexstate.PhaseDropped: {
		opDrop: stay(indexstate.PhaseDropped),
	},
}

// permit returns the phase op leads to from the current phase, or a
// UsageError. It does not change the phase, callers move once the operation
// has succeeded.
func (p *Populator) permit(op operation) (indexstate.Phase, error) {
	t, ok := lifecycle[p.phase][op]
	if !ok {
		return p.phase, &UsageError{Op: string(op), Phase: p.phase}
	}

	if t.guard != nil {
		if reason := t.guard(p); reason != "" {
			return p.phase, &UsageError{Op: string(op), Phase: p.phase, Reason: reason}
		}
	}

	return t.to, nil
}
