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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulatorMetrics(t *testing.T) {
	newMetrics := func(t *testing.T) *PrometheusMetrics {
		prom, err := NewPrometheusMetrics(prometheus.NewPedanticRegistry())
		require.Nil(t, err)
		return prom
	}

	t.Run("updates and conflicts are counted per path", func(t *testing.T) {
		prom := newMetrics(t)
		ti := newTestIndex(t, WithUnique(true), WithMetrics(NewMetrics(prom, "idx")))
		require.Nil(t, ti.populator.Create())
		assert.Equal(t, 1.0, testutil.ToFloat64(prom.Populating.WithLabelValues("idx")))

		require.Nil(t, ti.populator.Add([]EntryUpdate{add(1, int64(1)), add(2, int64(2))}))
		updater, err := ti.populator.NewPopulatingUpdater(nullPropertyAccessor)
		require.Nil(t, err)
		require.Nil(t, updater.Process(Remove(1, keyOf(int64(1)))))
		assert.True(t, IsConflict(updater.Process(add(3, int64(2)))))
		updater.Close()

		assert.Equal(t, 2.0, testutil.ToFloat64(prom.Updates.WithLabelValues("idx", pathBulk, "add")))
		assert.Equal(t, 1.0, testutil.ToFloat64(prom.Updates.WithLabelValues("idx", pathUpdater, "remove")))
		assert.Equal(t, 0.0, testutil.ToFloat64(prom.Updates.WithLabelValues("idx", pathUpdater, "add")))
		assert.Equal(t, 1.0, testutil.ToFloat64(prom.Conflicts.WithLabelValues("idx", pathUpdater)))

		require.Nil(t, ti.populator.Close(true))
		assert.Equal(t, 0.0, testutil.ToFloat64(prom.Populating.WithLabelValues("idx")))
		assert.Equal(t, 1.0, testutil.ToFloat64(prom.Populations.WithLabelValues("idx", outcomeOnline)))
	})

	t.Run("outcomes of failed and dropped populations", func(t *testing.T) {
		prom := newMetrics(t)

		failed := newTestIndex(t, WithMetrics(NewMetrics(prom, "failed")))
		require.Nil(t, failed.populator.Create())
		require.Nil(t, failed.populator.Close(false))
		require.Nil(t, failed.populator.Drop())

		dropped := newTestIndex(t, WithMetrics(NewMetrics(prom, "dropped")))
		require.Nil(t, dropped.populator.Create())
		require.Nil(t, dropped.populator.Drop())

		assert.Equal(t, 1.0, testutil.ToFloat64(prom.Populations.WithLabelValues("failed", outcomeFailed)))
		assert.Equal(t, 0.0, testutil.ToFloat64(prom.Populations.WithLabelValues("failed", outcomeDropped)))
		assert.Equal(t, 1.0, testutil.ToFloat64(prom.Populations.WithLabelValues("dropped", outcomeDropped)))
		assert.Equal(t, 2, testutil.CollectAndCount(prom.Durations))
	})

	t.Run("registering twice fails", func(t *testing.T) {
		reg := prometheus.NewPedanticRegistry()
		_, err := NewPrometheusMetrics(reg)
		require.Nil(t, err)

		_, err = NewPrometheusMetrics(reg)
		assert.NotNil(t, err)
	})

	t.Run("nil metrics record nothing", func(t *testing.T) {
		assert.Nil(t, NewMetrics(nil, "idx"))

		ti := newTestIndex(t, WithMetrics(nil))
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Add(someIndexEntryUpdates()))
		require.Nil(t, ti.populator.Close(true))
	})
}

func TestPopulatorLogging(t *testing.T) {
	t.Run("state changes are logged", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Close(true))

		var actions []interface{}
		for _, e := range ti.hook.AllEntries() {
			actions = append(actions, e.Data["action"])
			assert.Equal(t, ti.populator.RunID(), e.Data["run_id"])
		}
		assert.Equal(t, []interface{}{"native_index_create", "native_index_close"}, actions)

		last := ti.hook.LastEntry()
		assert.Equal(t, logrus.DebugLevel, last.Level)
		assert.Equal(t, "POPULATING", last.Data["from"])
		assert.Equal(t, "CLOSED_ONLINE", last.Data["state"])
	})

	t.Run("failures are logged as warnings", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())
		ti.hook.Reset()

		ti.populator.MarkAsFailed("disk on fire")

		require.Len(t, ti.hook.AllEntries(), 1)
		entry := ti.hook.LastEntry()
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, "native_index_mark_failed", entry.Data["action"])
		assert.Equal(t, "disk on fire", entry.Data["failure"])
		require.Nil(t, ti.populator.Close(false))
	})

	t.Run("late failures are ignored with a warning", func(t *testing.T) {
		ti := newTestIndex(t)
		require.Nil(t, ti.populator.Create())
		require.Nil(t, ti.populator.Close(true))
		ti.hook.Reset()

		ti.populator.MarkAsFailed("too late")

		require.Len(t, ti.hook.AllEntries(), 1)
		assert.Equal(t, logrus.WarnLevel, ti.hook.LastEntry().Level)
		ti.assertOnline(t)
	})
}
