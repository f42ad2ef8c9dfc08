//  Copyright (c) 2012 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package capi

import (
	"net/http"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
)

// ErrTooManyConcurrentRequests is returned by the admission gate when the combined
// in-flight _revs_diff and _bulk_docs count has reached the configured ceiling. The 503
// status tells the Source to back off and retry.
var ErrTooManyConcurrentRequests = base.HTTPErrorf(http.StatusServiceUnavailable, "Too many concurrent requests")

// AdmissionGate bounds the total number of in-flight _revs_diff and _bulk_docs requests.
// It is a pressure valve, not a queue: a request over the ceiling is rejected outright.
// The precheck and increment are not one atomic step, so the bound can briefly overshoot
// under a race; the Source's own serialization keeps that window negligible.
type AdmissionGate struct {
	maxConcurrent             int64
	activeRevsDiff            CounterMetric
	activeBulkDocs            CounterMetric
	tooManyConcurrentRequests CounterMetric
}

func NewAdmissionGate(maxConcurrent int64) *AdmissionGate {
	return &AdmissionGate{maxConcurrent: maxConcurrent}
}

// EnterRevsDiff admits a _revs_diff request, or returns ErrTooManyConcurrentRequests.
// Callers that get nil must call ExitRevsDiff when done.
func (g *AdmissionGate) EnterRevsDiff() error {
	return g.enter(&g.activeRevsDiff)
}

func (g *AdmissionGate) ExitRevsDiff() {
	g.activeRevsDiff.Dec()
}

// EnterBulkDocs admits a _bulk_docs request, or returns ErrTooManyConcurrentRequests.
// Callers that get nil must call ExitBulkDocs when done.
func (g *AdmissionGate) EnterBulkDocs() error {
	return g.enter(&g.activeBulkDocs)
}

func (g *AdmissionGate) ExitBulkDocs() {
	g.activeBulkDocs.Dec()
}

func (g *AdmissionGate) enter(active *CounterMetric) error {
	if g.activeRevsDiff.Count()+g.activeBulkDocs.Count() >= g.maxConcurrent {
		g.tooManyConcurrentRequests.Inc()
		return ErrTooManyConcurrentRequests
	}
	active.Inc()
	return nil
}

func (g *AdmissionGate) ActiveRevsDiff() int64 {
	return g.activeRevsDiff.Count()
}

func (g *AdmissionGate) ActiveBulkDocs() int64 {
	return g.activeBulkDocs.Count()
}

// Rejections returns how many requests the gate has turned away.
func (g *AdmissionGate) Rejections() int64 {
	return g.tooManyConcurrentRequests.Count()
}
