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
	entcfg "github.com/weaviate/nativeindex/entities/config"
)

// FromEnv takes a *Populator as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Populator) error {
	pageSize, ok, err := entcfg.LookupInt("NATIVE_INDEX_PAGE_SIZE")
	if err != nil {
		return err
	}
	if ok {
		config.PageSize = pageSize
	}

	if v, ok := entcfg.LookupBool("NATIVE_INDEX_UNIQUE"); ok {
		config.Unique = v
	}

	if v := os.Getenv("NATIVE_INDEX_SAME_ENTITY_POLICY"); v != "" {
		config.SameEntityPolicy = strings.ToLower(v)
	}

	if v, ok := entcfg.LookupBool("NATIVE_INDEX_NO_SYNC"); ok {
		config.NoSyncDuringPopulation = v
	}

	limit, ok, err := entcfg.LookupInt("NATIVE_INDEX_SAMPLE_SIZE_LIMIT")
	if err != nil {
		return errors.Wrap(err, "sampling")
	}
	if ok {
		config.Sampling.SampleSizeLimit = limit
	}

	return nil
}
