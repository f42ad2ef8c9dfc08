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

	"github.com/google/uuid"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
)

// CheckpointStore reads and writes the small per-replication state documents the Source
// uses to resume an interrupted stream. Documents are stored under the dedicated
// checkpoint type, wrapped in a {"doc": payload} envelope like every other document this
// bridge writes, and unwrapped again on read.
type CheckpointStore struct {
	client            IndexClient
	checkpointDocType string
	stats             *base.Stats
}

func NewCheckpointStore(client IndexClient, checkpointDocType string, stats *base.Stats) *CheckpointStore {
	return &CheckpointStore{
		client:            client,
		checkpointDocType: checkpointDocType,
		stats:             stats,
	}
}

// Get returns the checkpoint document's payload, or nil if it doesn't exist.
func (s *CheckpointStore) Get(index, docID string) (map[string]interface{}, error) {
	s.stats.Incr(&s.stats.CheckpointReads)
	return getIndexDocument(s.client, index, s.checkpointDocType, docID)
}

// Store writes the checkpoint document and returns its revision. A payload without a
// _rev gets one synthesized and written back into the payload before indexing, since the
// Source expects to read the revision out of subsequent fetches.
func (s *CheckpointStore) Store(index, docID string, document map[string]interface{}) (string, error) {
	s.stats.Incr(&s.stats.CheckpointWrites)
	return storeIndexDocument(s.client, index, s.checkpointDocType, docID, document)
}

func getIndexDocument(client IndexClient, index, docType, docID string) (map[string]interface{}, error) {
	result, err := client.Get(index, docType, docID)
	if err != nil {
		return nil, err
	}
	if result == nil || !result.Found {
		return nil, nil
	}
	doc, _ := result.Source["doc"].(map[string]interface{})
	return doc, nil
}

func storeIndexDocument(client IndexClient, index, docType, docID string, document map[string]interface{}) (string, error) {
	rev, _ := document["_rev"].(string)
	if rev == "" {
		rev = generateRevision()
		document["_rev"] = rev
	}

	result, err := client.Index(IndexOp{
		Index:   index,
		DocType: docType,
		ID:      docID,
		Source:  map[string]interface{}{"doc": document},
	})
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", base.HTTPErrorf(http.StatusInternalServerError, "indexing error, no response storing %q", docID)
	}
	return rev, nil
}

func generateRevision() string {
	return "1-" + uuid.New().String()
}
