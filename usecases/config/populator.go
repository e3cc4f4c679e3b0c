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

package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/nativeindex/adapters/repos/db/nativeindex"
	"github.com/weaviate/nativeindex/adapters/repos/db/pagestore"
	"gopkg.in/yaml.v2"
)

// Populator configures how native index files are built. The zero value is
// not usable, start from DefaultPopulator or Load.
type Populator struct {
	PageSize               int      `json:"page_size" yaml:"page_size"`
	Unique                 bool     `json:"unique" yaml:"unique"`
	SameEntityPolicy       string   `json:"same_entity_policy" yaml:"same_entity_policy"`
	NoSyncDuringPopulation bool     `json:"no_sync_during_population" yaml:"no_sync_during_population"`
	Sampling               Sampling `json:"sampling" yaml:"sampling"`
}

type Sampling struct {
	SampleSizeLimit int     `json:"sample_size_limit" yaml:"sample_size_limit"`
	UpdateRatio     float64 `json:"update_ratio" yaml:"update_ratio"`
}

func DefaultPopulator() Populator {
	sampling := nativeindex.DefaultSamplingConfig()
	return Populator{
		PageSize:               pagestore.DefaultPageSize,
		SameEntityPolicy:       string(nativeindex.SameEntityAllow),
		NoSyncDuringPopulation: true,
		Sampling: Sampling{
			SampleSizeLimit: sampling.SampleSizeLimit,
			UpdateRatio:     sampling.UpdateRatio,
		},
	}
}

// Load builds the config from the defaults, the yaml file at path (if path
// is not empty) and the environment, in that order, and validates the
// result.
func Load(path string, logger logrus.FieldLogger) (Populator, error) {
	config := DefaultPopulator()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return Populator{}, configErr(errors.Wrapf(err, "read config file %q", path))
		}

		logger.WithField("action", "config_load").
			WithField("config_file_path", path).
			Debug("loading native index config from file")
		if err := yaml.UnmarshalStrict(file, &config); err != nil {
			return Populator{}, configErr(errors.Wrapf(err, "parse config file %q", path))
		}
	}

	if err := FromEnv(&config); err != nil {
		return Populator{}, configErr(err)
	}
	config.SameEntityPolicy = strings.ToLower(config.SameEntityPolicy)

	if err := config.Validate(); err != nil {
		return Populator{}, configErr(err)
	}

	return config, nil
}

func (p Populator) Validate() error {
	if err := pagestore.ValidatePageSize(p.PageSize); err != nil {
		return errors.Wrap(err, "page_size")
	}

	if _, err := nativeindex.ValidateSameEntityPolicy(p.SameEntityPolicy); err != nil {
		return errors.Wrap(err, "same_entity_policy")
	}

	if p.Sampling.SampleSizeLimit <= 0 {
		return errors.Errorf("sampling.sample_size_limit must be positive, got %d",
			p.Sampling.SampleSizeLimit)
	}

	if p.Sampling.UpdateRatio <= 0 || p.Sampling.UpdateRatio > 1 {
		return errors.Errorf("sampling.update_ratio must be in (0, 1], got %v",
			p.Sampling.UpdateRatio)
	}

	return nil
}

// Options translates a validated config into populator options.
func (p Populator) Options() []nativeindex.Option {
	return []nativeindex.Option{
		nativeindex.WithPageSize(p.PageSize),
		nativeindex.WithUnique(p.Unique),
		nativeindex.WithSameEntityPolicy(nativeindex.SameEntityPolicy(p.SameEntityPolicy)),
		nativeindex.WithNoSyncDuringPopulation(p.NoSyncDuringPopulation),
		nativeindex.WithSamplingConfig(nativeindex.SamplingConfig{
			SampleSizeLimit: p.Sampling.SampleSizeLimit,
			UpdateRatio:     p.Sampling.UpdateRatio,
		}),
	}
}

func configErr(err error) error {
	return errors.Wrap(err, "invalid native index config")
}
