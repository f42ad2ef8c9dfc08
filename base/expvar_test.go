//  Copyright 2017-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package base

import (
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshot(t *testing.T) {
	var s Stats
	atomic.AddUint64(&s.BulkDocsIndexed, 3)
	atomic.AddUint64(&s.BulkDocsRejected, 1)
	atomic.AddUint64(&s.AdmissionRejected, 2)

	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap.BulkDocs.Indexed)
	assert.Equal(t, int64(1), snap.BulkDocs.Rejected)
	assert.Equal(t, int64(2), snap.Admission.Rejected)
	assert.Equal(t, int64(0), snap.RevsDiff.Requests)
}

func TestStatsRegisterPrometheusCollectors(t *testing.T) {
	var s Stats
	atomic.AddUint64(&s.IndexErrors, 5)

	reg := prometheus.NewRegistry()
	assert.NoError(t, s.RegisterPrometheusCollectors(reg))

	metrics, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, metrics)

	var found bool
	for _, mf := range metrics {
		if mf.GetName() == "capi_bridge_index_errors_total" {
			found = true
			assert.Equal(t, float64(5), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}
