//  Copyright 2017-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package base

import (
	"expvar"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const StatsGroupKey = "capi_bridge"

// Stats tracks the atomic counters exposed by expvar (served at the admin /_expvar endpoint)
// and by the Prometheus /metrics endpoint. Counters are plain atomic fields behind a snapshot
// method, not a mutex-guarded struct.
type Stats struct {
	RevsDiffRequests  uint64
	RevsDiffMissing   uint64
	BulkDocsRequests  uint64
	BulkDocsIndexed   uint64
	BulkDocsDeleted   uint64
	BulkDocsRejected  uint64
	BulkDocsRetried   uint64
	CheckpointReads   uint64
	CheckpointWrites  uint64
	AdmissionRejected uint64
	IndexErrors       uint64
}

// StatsSnapshot is the JSON shape published to expvar under StatsGroupKey. The admin _stats
// endpoint does not use it; that endpoint returns capi.BehaviorStats.
type StatsSnapshot struct {
	RevsDiff   RevsDiffStats   `json:"revs_diff"`
	BulkDocs   BulkDocsStats   `json:"bulk_docs"`
	Checkpoint CheckpointStats `json:"checkpoint"`
	Admission  AdmissionStats  `json:"admission"`
	Index      IndexStats      `json:"index"`
}

type RevsDiffStats struct {
	Requests int64 `json:"requests"`
	Missing  int64 `json:"missing_revisions"`
}

type BulkDocsStats struct {
	Requests int64 `json:"requests"`
	Indexed  int64 `json:"docs_indexed"`
	Deleted  int64 `json:"docs_deleted"`
	Rejected int64 `json:"docs_rejected"`
	Retried  int64 `json:"docs_retried"`
}

type CheckpointStats struct {
	Reads  int64 `json:"reads"`
	Writes int64 `json:"writes"`
}

type AdmissionStats struct {
	Rejected int64 `json:"rejected"`
}

type IndexStats struct {
	Errors int64 `json:"errors"`
}

// GlobalStats is published to expvar and registered for the Prometheus /metrics endpoint. It is
// process-global because this bridge runs a single CAPI listener per process.
var GlobalStats Stats

func init() {
	expvar.Publish(StatsGroupKey, expvar.Func(func() interface{} {
		return GlobalStats.Snapshot()
	}))
}

// Incr atomically increments one of s's counter fields.
func (s *Stats) Incr(counter *uint64) {
	s.IncrBy(counter, 1)
}

// IncrBy atomically adds delta to one of s's counter fields.
func (s *Stats) IncrBy(counter *uint64, delta uint64) {
	atomic.AddUint64(counter, delta)
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		RevsDiff: RevsDiffStats{
			Requests: int64(atomic.LoadUint64(&s.RevsDiffRequests)),
			Missing:  int64(atomic.LoadUint64(&s.RevsDiffMissing)),
		},
		BulkDocs: BulkDocsStats{
			Requests: int64(atomic.LoadUint64(&s.BulkDocsRequests)),
			Indexed:  int64(atomic.LoadUint64(&s.BulkDocsIndexed)),
			Deleted:  int64(atomic.LoadUint64(&s.BulkDocsDeleted)),
			Rejected: int64(atomic.LoadUint64(&s.BulkDocsRejected)),
			Retried:  int64(atomic.LoadUint64(&s.BulkDocsRetried)),
		},
		Checkpoint: CheckpointStats{
			Reads:  int64(atomic.LoadUint64(&s.CheckpointReads)),
			Writes: int64(atomic.LoadUint64(&s.CheckpointWrites)),
		},
		Admission: AdmissionStats{
			Rejected: int64(atomic.LoadUint64(&s.AdmissionRejected)),
		},
		Index: IndexStats{
			Errors: int64(atomic.LoadUint64(&s.IndexErrors)),
		},
	}
}

// RegisterPrometheusCollectors registers a gauge per counter against reg, each backed by the
// live atomic fields on s so scrapes always read current values without a sync pass.
func (s *Stats) RegisterPrometheusCollectors(reg prometheus.Registerer) error {
	collectors := []struct {
		name string
		help string
		val  *uint64
	}{
		{"capi_bridge_revs_diff_requests_total", "Total _revs_diff requests handled.", &s.RevsDiffRequests},
		{"capi_bridge_revs_diff_missing_total", "Total revisions reported missing by _revs_diff.", &s.RevsDiffMissing},
		{"capi_bridge_bulk_docs_requests_total", "Total _bulk_docs requests handled.", &s.BulkDocsRequests},
		{"capi_bridge_bulk_docs_indexed_total", "Total documents indexed via _bulk_docs.", &s.BulkDocsIndexed},
		{"capi_bridge_bulk_docs_deleted_total", "Total documents deleted via _bulk_docs.", &s.BulkDocsDeleted},
		{"capi_bridge_bulk_docs_rejected_total", "Total documents rejected by the admission gate.", &s.BulkDocsRejected},
		{"capi_bridge_bulk_docs_retried_total", "Total documents retried after a transient index failure.", &s.BulkDocsRetried},
		{"capi_bridge_checkpoint_reads_total", "Total checkpoint document reads.", &s.CheckpointReads},
		{"capi_bridge_checkpoint_writes_total", "Total checkpoint document writes.", &s.CheckpointWrites},
		{"capi_bridge_admission_rejected_total", "Total requests rejected by the admission gate.", &s.AdmissionRejected},
		{"capi_bridge_index_errors_total", "Total errors returned by the index client.", &s.IndexErrors},
	}

	for _, c := range collectors {
		val := c.val
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: c.name,
			Help: c.help,
		}, func() float64 {
			return float64(atomic.LoadUint64(val))
		})
		if err := reg.Register(gauge); err != nil {
			return err
		}
	}
	return nil
}
