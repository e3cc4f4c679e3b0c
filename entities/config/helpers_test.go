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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled(t *testing.T) {
	for _, in := range []string{"on", "enabled", "1", "true", "TRUE", "On"} {
		assert.True(t, Enabled(in), in)
	}
	for _, in := range []string{"", "off", "0", "false", "yes"} {
		assert.False(t, Enabled(in), in)
	}
}

func TestLookup(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		t.Setenv("TEST_LOOKUP_BOOL", "on")
		v, ok := LookupBool("TEST_LOOKUP_BOOL")
		assert.True(t, ok)
		assert.True(t, v)

		_, ok = LookupBool("TEST_LOOKUP_BOOL_UNSET")
		assert.False(t, ok)
	})

	t.Run("int", func(t *testing.T) {
		t.Setenv("TEST_LOOKUP_INT", "4096")
		v, ok, err := LookupInt("TEST_LOOKUP_INT")
		require.Nil(t, err)
		assert.True(t, ok)
		assert.Equal(t, 4096, v)

		t.Setenv("TEST_LOOKUP_INT", "four")
		_, _, err = LookupInt("TEST_LOOKUP_INT")
		require.NotNil(t, err)
	})
}
