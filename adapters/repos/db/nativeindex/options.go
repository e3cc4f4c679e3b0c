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
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/nativeindex/adapters/repos/db/pagestore"
)

// SamplingConfig is carried along for the index statistics, the populator
// only persists it in the descriptor.
type SamplingConfig struct {
	SampleSizeLimit int     `msgpack:"sample_size_limit"`
	UpdateRatio     float64 `msgpack:"update_ratio"`
}

func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		SampleSizeLimit: 8_388_608,
		UpdateRatio:     0.1,
	}
}

type Option func(p *Populator) error

// WithUnique makes the index reject two different entities with equal keys.
func WithUnique(unique bool) Option {
	return func(p *Populator) error {
		p.unique = unique
		return nil
	}
}

func WithSameEntityPolicy(policy SameEntityPolicy) Option {
	return func(p *Populator) error {
		normalized, err := ValidateSameEntityPolicy(string(policy))
		if err != nil {
			return err
		}

		p.policy = normalized
		return nil
	}
}

func WithPageSize(pageSize int) Option {
	return func(p *Populator) error {
		if err := pagestore.ValidatePageSize(pageSize); err != nil {
			return err
		}

		p.pageSize = pageSize
		return nil
	}
}

// WithNoSyncDuringPopulation skips fsync for entry updates. The header is
// always written with a synced commit, which makes all earlier entries
// durable as well.
func WithNoSyncDuringPopulation(noSync bool) Option {
	return func(p *Populator) error {
		p.noSync = noSync
		return nil
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Populator) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}

		p.logger = logger
		return nil
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(p *Populator) error {
		p.metrics = metrics
		return nil
	}
}

func WithSamplingConfig(cfg SamplingConfig) Option {
	return func(p *Populator) error {
		p.sampling = cfg
		return nil
	}
}

func WithFileSystem(fs pagestore.FileSystem) Option {
	return func(p *Populator) error {
		if fs == nil {
			return errors.New("file system must not be nil")
		}

		p.fs = fs
		return nil
	}
}

func WithMappings(mappings *pagestore.Mappings) Option {
	return func(p *Populator) error {
		if mappings == nil {
			return errors.New("mappings must not be nil")
		}

		p.mappings = mappings
		return nil
	}
}
