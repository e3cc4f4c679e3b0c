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
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/nativeindex/adapters/repos/db/pagestore"
	"github.com/weaviate/nativeindex/entities/indexstate"
)

// Populator builds a new index file from scratch. It owns the store and the
// lifecycle of the index: Create, then any mix of Add and populating
// updaters, then exactly one Close (or Drop). The outcome is persisted in the
// header of the index file on Close.
//
// A Populator is not safe for concurrent use. Bulk adds and populating
// updaters may be interleaved, but never called at the same time.
type Populator struct {
	path     string
	layout   Layout
	unique   bool
	policy   SameEntityPolicy
	pageSize int
	noSync   bool
	sampling SamplingConfig
	fs       pagestore.FileSystem
	mappings *pagestore.Mappings
	logger   logrus.FieldLogger
	metrics  *Metrics
	runID    string

	phase          indexstate.Phase
	store          *pagestore.Store
	tracker        *Tracker
	applier        *applier
	failed         bool
	failureMessage string
	startedAt      time.Time
}

func NewPopulator(path string, layout Layout, opts ...Option) (*Populator, error) {
	if layout == nil {
		return nil, errors.New("layout must not be nil")
	}

	p := &Populator{
		path:     path,
		layout:   layout,
		policy:   SameEntityAllow,
		pageSize: pagestore.DefaultPageSize,
		noSync:   true,
		sampling: DefaultSamplingConfig(),
		fs:       pagestore.OSFileSystem{},
		mappings: pagestore.DefaultMappings,
		logger:   logrus.StandardLogger(),
		runID:    uuid.NewString(),
		phase:    indexstate.PhaseCreated,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, errors.Wrap(err, "configure populator")
		}
	}

	p.logger = p.logger.WithFields(logrus.Fields{
		"index":  path,
		"run_id": p.runID,
	})
	return p, nil
}

func (p *Populator) Path() string {
	return p.path
}

func (p *Populator) Phase() indexstate.Phase {
	return p.phase
}

func (p *Populator) RunID() string {
	return p.runID
}

func (p *Populator) SamplingConfig() SamplingConfig {
	return p.sampling
}

// MarkedAsFailed returns whether MarkAsFailed was called and the last message
// it was called with.
func (p *Populator) MarkedAsFailed() (bool, string) {
	return p.failed, p.failureMessage
}

// Create (re)creates the index file, discarding anything that was there
// before.
func (p *Populator) Create() error {
	to, err := p.permit(opCreate)
	if err != nil {
		return err
	}

	store, err := pagestore.Create(p.path,
		pagestore.WithPageSize(p.pageSize),
		pagestore.WithNoSync(p.noSync),
		pagestore.WithMappings(p.mappings),
		pagestore.WithFileSystem(p.fs),
	)
	if err != nil {
		return errors.Wrapf(err, "create index file %q", p.path)
	}

	if err := store.WriteDescriptor(p.descriptor()); err != nil {
		if dropErr := store.Drop(); dropErr != nil {
			p.logger.WithError(dropErr).
				WithField("action", "native_index_create").
				Warn("could not remove partially created index file")
		}
		return err
	}

	p.store = store
	p.tracker = NewTracker()
	p.applier = &applier{
		layout:  p.layout,
		unique:  p.unique,
		policy:  p.policy,
		tracker: p.tracker,
	}
	p.startedAt = time.Now()
	p.metrics.started()
	p.moveTo(to, opCreate)
	return nil
}

// Add applies updates in order as a single store transaction. If an update
// is rejected, the updates before it stay applied and the error is returned.
func (p *Populator) Add(updates []EntryUpdate) error {
	if _, err := p.permit(opAdd); err != nil {
		return err
	}

	return p.apply(updates, nil, pathBulk)
}

// NewPopulatingUpdater returns an updater for online changes that arrive
// while the index is populated. The updater must be closed by the caller.
func (p *Populator) NewPopulatingUpdater(accessor PropertyAccessor) (*PopulatingUpdater, error) {
	if _, err := p.permit(opNewUpdater); err != nil {
		return nil, err
	}

	return &PopulatingUpdater{
		populator: p,
		accessor:  accessor,
	}, nil
}

// WithPopulatingUpdater runs fn with a new updater and closes it on every
// return path.
func (p *Populator) WithPopulatingUpdater(accessor PropertyAccessor,
	fn func(u *PopulatingUpdater) error,
) error {
	u, err := p.NewPopulatingUpdater(accessor)
	if err != nil {
		return err
	}
	defer u.Close()

	return fn(u)
}

func (p *Populator) process(update EntryUpdate, accessor PropertyAccessor) error {
	if _, err := p.permit(opProcess); err != nil {
		return err
	}

	return p.apply([]EntryUpdate{update}, accessor, pathUpdater)
}

func (p *Populator) apply(updates []EntryUpdate, accessor PropertyAccessor, path string) error {
	if len(updates) == 0 {
		return nil
	}

	var rejected error
	applied := 0

	p.tracker.begin()
	err := p.store.Update(func(b *pagestore.Batch) error {
		for _, u := range updates {
			if err := p.applier.apply(b, u, accessor); err != nil {
				if IsConflict(err) || errors.Is(err, ErrInvalidUpdate) {
					// keep what was applied so far
					rejected = err
					return nil
				}
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		p.tracker.rollback()
		return errors.Wrapf(err, "apply %d entry updates to %q", len(updates), p.path)
	}
	p.tracker.commit()

	for _, u := range updates[:applied] {
		p.metrics.updateApplied(path, u.Mode)
	}
	if IsConflict(rejected) {
		p.metrics.conflict(path)
	}
	return rejected
}

// MarkAsFailed records a failure message that Close(false) persists. It does
// not close anything itself and can be called repeatedly, the last message
// wins. Once the populator is closed or dropped the call is ignored.
func (p *Populator) MarkAsFailed(message string) {
	if _, err := p.permit(opMarkAsFailed); err != nil {
		p.logger.WithError(err).
			WithField("action", "native_index_mark_failed").
			Warn("ignoring failure of an index that is no longer populating")
		return
	}

	p.failed = true
	p.failureMessage = message

	p.logger.
		WithField("action", "native_index_mark_failed").
		WithField("failure", message).
		Warn("index population marked as failed")
}

// Close persists the outcome of the population in the index header and
// releases the index file. Close(true) is rejected if the populator was
// marked as failed, the populator then stays open for Close(false).
func (p *Populator) Close(success bool) error {
	op, header, outcome := opCloseFailed, FailedHeader(p.failureMessage), outcomeFailed
	if success {
		op, header, outcome = opCloseOnline, OnlineHeader(), outcomeOnline
	}

	to, err := p.permit(op)
	if err != nil {
		return err
	}

	if err := p.store.WriteHeader(header.EncodeInto); err != nil {
		return errors.Wrapf(err, "mark index %q as %s", p.path, header.State)
	}

	closeErr := p.store.Close()
	p.tracker = nil
	p.applier = nil
	p.metrics.finished(outcome, p.startedAt)
	p.moveTo(to, op)

	if closeErr != nil {
		return errors.Wrapf(closeErr, "close index file %q", p.path)
	}
	return nil
}

// Drop deletes the index file. It succeeds if there is no file and can be
// called in every phase, also after Close.
func (p *Populator) Drop() error {
	to, err := p.permit(opDrop)
	if err != nil {
		return err
	}

	if p.store != nil {
		err = p.store.Drop()
	} else {
		err = p.fs.Remove(p.path)
	}
	if err != nil {
		return errors.Wrapf(err, "drop index file %q", p.path)
	}

	if p.phase == indexstate.PhasePopulating {
		p.metrics.finished(outcomeDropped, p.startedAt)
	}
	p.store = nil
	p.tracker = nil
	p.applier = nil
	p.moveTo(to, opDrop)
	return nil
}

// Entries calls fn for every entry of the index in key order, until fn
// returns false. It is only available while populating, use a Reader
// afterwards.
func (p *Populator) Entries(fn func(e Entry) bool) error {
	if p.phase != indexstate.PhasePopulating {
		return &UsageError{Op: "entries", Phase: p.phase}
	}

	return scanEntries(p.store, p.layout.KeySize(), fn)
}

func (p *Populator) moveTo(to indexstate.Phase, op operation) {
	from := p.phase
	p.phase = to

	p.logger.
		WithField("action", "native_index_"+actionName(op)).
		WithField("from", from.String()).
		WithField("state", to.String()).
		Debug("index populator changed state")
}

func actionName(op operation) string {
	switch op {
	case opCloseOnline, opCloseFailed:
		return "close"
	default:
		return string(op)
	}
}

func (p *Populator) descriptor() Descriptor {
	return Descriptor{
		Layout:           p.layout.Name(),
		KeySize:          p.layout.KeySize(),
		Unique:           p.unique,
		SameEntityPolicy: string(p.policy),
		Sampling:         p.sampling,
		RunID:            p.runID,
		CreatedAtUnix:    time.Now().Unix(),
	}
}
