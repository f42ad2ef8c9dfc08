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
	"strings"
	"time"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
)

const (
	// defaultPoolName is the pool component of the Couchbase namespace. The CAPI protocol
	// carries it, but this bridge maps everything onto one index namespace.
	defaultPoolName = "default"

	DefaultMaxConcurrentRequests = 1024
	DefaultBulkIndexRetries      = 1024
	DefaultBulkIndexRetryWaitMs  = 1000
)

// Behavior answers the Source's CAPI replication verbs against an Index. It is safe for
// concurrent use; the only coordination across requests is the admission gate.
type Behavior struct {
	client            IndexClient
	typeSelector      TypeSelector
	checkpointDocType string
	resolveConflicts  bool
	bulkRetries       int
	bulkRetryWait     time.Duration
	parentFields      map[string]string
	routingFields     map[string]string

	gate        *AdmissionGate
	uuids       *UUIDStore
	checkpoints *CheckpointStore
	stats       *base.Stats

	meanRevsDiff MeanMetric
	meanBulkDocs MeanMetric

	// now and sleep exist so tests can drive the TTL computation and the bulk retry
	// delay without wall-clock time.
	now   func() time.Time
	sleep func(time.Duration)
}

// BehaviorOptions configures a Behavior. The zero value of every field has a usable
// default except Client, which is required.
type BehaviorOptions struct {
	Client                    IndexClient
	TypeSelector              TypeSelector      // default: ConstantTypeSelector{DefaultDocumentType}
	CheckpointDocumentType    string            // default: DefaultCheckpointDocumentType
	ResolveConflicts          bool              // enable the revs-diff conflict-avoidance multi-get
	MaxConcurrentRequests     int64             // admission ceiling, default DefaultMaxConcurrentRequests
	BulkIndexRetries          int               // bulk attempt cap, default DefaultBulkIndexRetries
	BulkIndexRetryWaitMs      int               // delay between bulk attempts, default DefaultBulkIndexRetryWaitMs
	DocumentTypeParentFields  map[string]string // type -> dotted path of the parent id
	DocumentTypeRoutingFields map[string]string // type -> dotted path of the routing value
	BucketUUIDCacheSize       int               // default DefaultBucketUUIDCacheSize
	Stats                     *base.Stats       // default: a private Stats instance
}

func NewBehavior(opts BehaviorOptions) *Behavior {
	if opts.Client == nil {
		base.Panicf(base.KeyAll, "NewBehavior requires an IndexClient")
	}
	if opts.TypeSelector == nil {
		opts.TypeSelector = ConstantTypeSelector{DocType: DefaultDocumentType}
	}
	if opts.CheckpointDocumentType == "" {
		opts.CheckpointDocumentType = DefaultCheckpointDocumentType
	}
	if opts.MaxConcurrentRequests <= 0 {
		opts.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if opts.BulkIndexRetries <= 0 {
		opts.BulkIndexRetries = DefaultBulkIndexRetries
	}
	if opts.BulkIndexRetryWaitMs <= 0 {
		opts.BulkIndexRetryWaitMs = DefaultBulkIndexRetryWaitMs
	}
	if opts.Stats == nil {
		opts.Stats = &base.Stats{}
	}

	return &Behavior{
		client:            opts.Client,
		typeSelector:      opts.TypeSelector,
		checkpointDocType: opts.CheckpointDocumentType,
		resolveConflicts:  opts.ResolveConflicts,
		bulkRetries:       opts.BulkIndexRetries,
		bulkRetryWait:     time.Duration(opts.BulkIndexRetryWaitMs) * time.Millisecond,
		parentFields:      opts.DocumentTypeParentFields,
		routingFields:     opts.DocumentTypeRoutingFields,
		gate:              NewAdmissionGate(opts.MaxConcurrentRequests),
		uuids:             NewUUIDStore(opts.Client, opts.CheckpointDocumentType, opts.BucketUUIDCacheSize),
		checkpoints:       NewCheckpointStore(opts.Client, opts.CheckpointDocumentType, opts.Stats),
		stats:             opts.Stats,
		now:               time.Now,
		sleep:             time.Sleep,
	}
}

//////// METADATA:

// Welcome returns the record identifying this bridge to the Source.
func (b *Behavior) Welcome() map[string]interface{} {
	return map[string]interface{}{
		"welcome": "elasticsearch-transport-couchbase",
		"version": base.ProductAPIVersion,
	}
}

// DatabaseExists returns nil if the index backing the database exists and, when the ref
// carries a UUID, the stored bucket UUID matches it. The error's message ("missing" or
// "uuids_dont_match") is the reason string the CAPI protocol defines.
func (b *Behavior) DatabaseExists(database string) error {
	ref := ParseDatabaseRef(database)
	exists, err := b.client.IndexExists(ref.IndexName)
	if err != nil {
		b.stats.Incr(&b.stats.IndexErrors)
		return err
	}
	if !exists {
		return base.HTTPErrorf(http.StatusNotFound, "missing")
	}
	if ref.UUID != "" {
		base.Debugf(base.KeyReplicate, "database %q included uuid, validating", base.MD(database))
		actualUUID, err := b.uuids.GetBucketUUID(defaultPoolName, ref.IndexName)
		if err != nil {
			return err
		}
		if actualUUID != ref.UUID {
			return base.HTTPErrorf(http.StatusNotFound, "uuids_dont_match")
		}
	}
	return nil
}

// GetDatabaseDetails returns the details record for an existing database.
func (b *Behavior) GetDatabaseDetails(database string) (map[string]interface{}, error) {
	if err := b.DatabaseExists(database); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"db_name": DatabaseNameWithoutUUID(database),
	}, nil
}

// CreateDatabase always refuses: indexes are managed outside this bridge. The 501 keeps
// the Source from treating the refusal as transient.
func (b *Behavior) CreateDatabase(database string) error {
	return base.HTTPErrorf(http.StatusNotImplemented, "Creating indexes is not supported")
}

// DeleteDatabase always refuses, like CreateDatabase.
func (b *Behavior) DeleteDatabase(database string) error {
	return base.HTTPErrorf(http.StatusNotImplemented, "Deleting indexes is not supported")
}

// EnsureFullCommit succeeds trivially; the index manages its own durability.
func (b *Behavior) EnsureFullCommit(database string) error {
	return nil
}

// GetBucketUUID returns the stable UUID for the database's bucket.
func (b *Behavior) GetBucketUUID(pool, bucket string) (string, error) {
	return b.uuids.GetBucketUUID(pool, bucket)
}

// GetVBucketUUID returns the stable UUID for one vbucket of the database's bucket.
func (b *Behavior) GetVBucketUUID(pool, bucket string, vbucket int) (string, error) {
	return b.uuids.GetVBucketUUID(pool, bucket, vbucket)
}

//////// REVS DIFF:

// RevsDiff reports which of the given id -> rev candidates the index doesn't have. The
// conservative answer is "all of them": every input starts in the response, and entries
// are only removed when conflict resolution is on and the index provably holds that exact
// revision. Wrong answers cost bandwidth, never correctness, so any per-item lookup
// failure just leaves the entry in place.
func (b *Behavior) RevsDiff(database string, revs map[string]string) (map[string]RevsDiffEntry, error) {
	if err := b.gate.EnterRevsDiff(); err != nil {
		b.stats.Incr(&b.stats.AdmissionRejected)
		return nil, err
	}
	start := time.Now()
	defer func() {
		b.meanRevsDiff.Add(time.Since(start))
		b.gate.ExitRevsDiff()
	}()

	b.stats.Incr(&b.stats.RevsDiffRequests)
	base.Debugf(base.KeyReplicate, "_revs_diff request for %q: %d ids", base.MD(database), len(revs))

	response := make(map[string]RevsDiffEntry, len(revs))
	for id, rev := range revs {
		response[id] = RevsDiffEntry{Missing: rev}
	}

	if b.resolveConflicts {
		b.resolveKnownRevisions(ParseDatabaseRef(database).IndexName, response)
	}

	b.stats.IncrBy(&b.stats.RevsDiffMissing, uint64(len(response)))
	return response, nil
}

// resolveKnownRevisions removes from the response every id whose stored document carries
// the same meta.rev as the candidate, using one multi-get round trip.
func (b *Behavior) resolveKnownRevisions(index string, response map[string]RevsDiffEntry) {
	items := make([]MultiGetItem, 0, len(response))
	for id := range response {
		items = append(items, MultiGetItem{
			Index:   index,
			DocType: b.typeSelector.Type(index, id),
			ID:      id,
		})
	}

	results, err := b.client.MultiGet(items)
	if err != nil {
		b.stats.Incr(&b.stats.IndexErrors)
		base.Warnf(base.KeyReplicate, "_revs_diff multi-get against %q failed: %v", base.MD(index), err)
		return
	}

	for _, item := range results {
		if item.Error != "" {
			base.Warnf(base.KeyReplicate, "_revs_diff get failure on index: %q id: %q message: %s", base.MD(item.Index), base.UD(item.ID), item.Error)
			continue
		}
		if !item.Found || item.Source == nil {
			continue
		}
		meta, _ := item.Source["meta"].(map[string]interface{})
		if meta == nil {
			continue
		}
		rev, _ := meta["rev"].(string)
		if entry, ok := response[item.ID]; ok && rev == entry.Missing {
			delete(response, item.ID)
			base.Debugf(base.KeyReplicate, "_revs_diff already have id: %q rev: %q", base.UD(item.ID), rev)
		}
	}
}

//////// BULK DOCS:

// BulkDocs normalizes and writes one batch of mutations to the index, returning one
// {id, rev} acknowledgement per successfully written input mutation, in input order. The
// rev in each acknowledgement is the Source's own revision captured at normalization
// time; the Source is authoritative for replication progress, not the index.
//
// A bulk attempt whose only failures look like index queue pressure is retried whole
// after a fixed wait, relying on the ops being keyed by id for idempotence. Any other
// failure aborts immediately with no acknowledgement list at all - the Source must never
// be told about a write that didn't land.
func (b *Behavior) BulkDocs(database string, docs []Mutation) ([]BulkDocsResult, error) {
	if err := b.gate.EnterBulkDocs(); err != nil {
		b.stats.Incr(&b.stats.AdmissionRejected)
		b.stats.IncrBy(&b.stats.BulkDocsRejected, uint64(len(docs)))
		return nil, err
	}
	start := time.Now()
	defer func() {
		b.meanBulkDocs.Add(time.Since(start))
		b.gate.ExitBulkDocs()
	}()

	b.stats.Incr(&b.stats.BulkDocsRequests)
	index := ParseDatabaseRef(database).IndexName
	base.Debugf(base.KeyReplicate, "_bulk_docs request for %q: %d mutations", base.MD(database), len(docs))

	ops, revisions := b.buildBulkOps(index, docs)
	if len(ops) == 0 {
		return []BulkDocsResult{}, nil
	}

	var results []BulkDocsResult
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			b.stats.IncrBy(&b.stats.BulkDocsRetried, uint64(len(ops)))
			b.sleep(b.bulkRetryWait)
		}

		response, err := b.client.Bulk(ops)
		if err != nil {
			b.stats.Incr(&b.stats.IndexErrors)
			return nil, err
		}
		if response == nil {
			b.stats.Incr(&b.stats.IndexErrors)
			return nil, base.HTTPErrorf(http.StatusInternalServerError, "indexing error, bulk response was null")
		}

		results = results[:0]
		hasFailures := false
		for _, item := range response.Items {
			if !item.Failed {
				results = append(results, BulkDocsResult{ID: item.ID, Rev: revisions[item.ID]})
				continue
			}
			hasFailures = true
			if failureMessageAppearsFatal(item.FailureMessage) {
				b.stats.Incr(&b.stats.IndexErrors)
				return nil, base.HTTPErrorf(http.StatusInternalServerError, "indexing error %s", item.FailureMessage)
			}
			base.Warnf(base.KeyReplicate, "_bulk_docs transient failure for id %q: %s", base.UD(item.ID), item.FailureMessage)
		}

		if !hasFailures {
			base.Debugf(base.KeyReplicate, "bulk index succeeded after %d tries", attempt)
			break
		}
		if attempt >= b.bulkRetries {
			b.stats.Incr(&b.stats.IndexErrors)
			return nil, base.HTTPErrorf(http.StatusInternalServerError, "indexing error, bulk failed after all retries")
		}
	}

	return results, nil
}

// buildBulkOps normalizes each mutation into a bulk operation and records the Source's
// revision per id for building the response. Mutations without a meta section are
// dropped with a warning; everything else produces exactly one op.
func (b *Behavior) buildBulkOps(index string, docs []Mutation) ([]BulkOp, map[string]string) {
	nowMs := b.now().UnixMilli()
	ops := make([]BulkOp, 0, len(docs))
	revisions := make(map[string]string, len(docs))

	for i := range docs {
		mutation := &docs[i]
		if mutation.Meta == nil {
			base.Warnf(base.KeyCRUD, "Document without meta in bulk_docs, ignoring...")
			continue
		}

		id := mutation.ID()
		revisions[id] = mutation.Rev()
		docType := b.typeSelector.Type(index, id)

		if mutation.Deleted() {
			b.stats.Incr(&b.stats.BulkDocsDeleted)
			ops = append(ops, BulkOp{Delete: true, Index: index, DocType: docType, ID: id})
			continue
		}

		source := map[string]interface{}{
			"meta": mutation.Meta,
			"doc":  mutation.payload(),
		}
		op := BulkOp{Index: index, DocType: docType, ID: id, Source: source}

		if expiration := mutation.Expiration(); expiration != 0 {
			// An expiry already in the past yields ttl <= 0; drop the TTL and let the
			// index decide rather than guessing at expiry semantics here.
			if ttl := expiration*1000 - nowMs; ttl > 0 {
				op.TTLMillis = ttl
			}
		}

		if parentField := b.parentFields[docType]; parentField != "" {
			if parent, ok := ResolvePath(source, parentField).(string); ok {
				op.Parent = parent
			} else {
				base.Warnf(base.KeyCRUD, "Unable to determine parent value from parent field %q for doc id %q", parentField, base.UD(id))
			}
		}
		if routingField := b.routingFields[docType]; routingField != "" {
			if routing, ok := ResolvePath(source, routingField).(string); ok {
				op.Routing = routing
			} else {
				base.Warnf(base.KeyCRUD, "Unable to determine routing value from routing field %q for doc id %q", routingField, base.UD(id))
			}
		}

		b.stats.Incr(&b.stats.BulkDocsIndexed)
		ops = append(ops, op)
	}
	return ops, revisions
}

// failureMessageAppearsFatal classifies a bulk item failure. Index thread-pool rejections
// are back-pressure, not errors: the whole batch gets another chance. Everything else is
// fatal.
func failureMessageAppearsFatal(failureMessage string) bool {
	return !strings.Contains(failureMessage, "EsRejectedExecutionException")
}

//////// DOCUMENTS:

// GetDocument fetches a document's payload by id, or nil if it doesn't exist.
func (b *Behavior) GetDocument(database, docID string) (map[string]interface{}, error) {
	index := ParseDatabaseRef(database).IndexName
	return getIndexDocument(b.client, index, b.typeSelector.Type(index, docID), docID)
}

// StoreDocument writes a document payload and returns its revision, synthesizing one if
// the payload doesn't carry a _rev.
func (b *Behavior) StoreDocument(database, docID string, document map[string]interface{}) (string, error) {
	index := ParseDatabaseRef(database).IndexName
	return storeIndexDocument(b.client, index, b.typeSelector.Type(index, docID), docID, document)
}

// GetLocalDocument fetches a checkpoint document's payload, or nil if it doesn't exist.
func (b *Behavior) GetLocalDocument(database, docID string) (map[string]interface{}, error) {
	return b.checkpoints.Get(ParseDatabaseRef(database).IndexName, docID)
}

// StoreLocalDocument writes a checkpoint document and returns its revision.
func (b *Behavior) StoreLocalDocument(database, docID string, document map[string]interface{}) (string, error) {
	return b.checkpoints.Store(ParseDatabaseRef(database).IndexName, docID, document)
}

//////// STATS:

// EndpointStats carries the activity counters for one replication endpoint.
type EndpointStats struct {
	ActiveCount int64   `json:"activeCount"`
	TotalCount  int64   `json:"totalCount"`
	TotalTimeMs int64   `json:"totalTime"`
	AvgTimeMs   float64 `json:"avgTime"`
}

// BehaviorStats is the record returned by the _stats endpoint, keyed the way the CAPI
// protocol's operator tooling expects.
type BehaviorStats struct {
	BulkDocs                        EndpointStats `json:"_bulk_docs"`
	RevsDiff                        EndpointStats `json:"_revs_diff"`
	TooManyConcurrentRequestsErrors int64         `json:"tooManyConcurrentRequestsErrors"`
}

// Stats returns a snapshot of the behavior's endpoint counters.
func (b *Behavior) Stats() BehaviorStats {
	return BehaviorStats{
		BulkDocs: EndpointStats{
			ActiveCount: b.gate.ActiveBulkDocs(),
			TotalCount:  b.meanBulkDocs.Count(),
			TotalTimeMs: b.meanBulkDocs.SumMs(),
			AvgTimeMs:   b.meanBulkDocs.Mean(),
		},
		RevsDiff: EndpointStats{
			ActiveCount: b.gate.ActiveRevsDiff(),
			TotalCount:  b.meanRevsDiff.Count(),
			TotalTimeMs: b.meanRevsDiff.SumMs(),
			AvgTimeMs:   b.meanRevsDiff.Mean(),
		},
		TooManyConcurrentRequestsErrors: b.gate.Rejections(),
	}
}
