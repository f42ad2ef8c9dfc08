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
	"encoding/base64"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
)

// attReasonNonJSON marks a mutation whose body the Source already knows isn't JSON, so
// there's no point trying to decode it.
const attReasonNonJSON = "non-JSON mode"

// Mutation is one entry of a _bulk_docs push. Meta is kept as a raw mapping rather than a
// struct because it is written verbatim into the indexed envelope, and the Source attaches
// fields (flags, vbucket sequence numbers) this bridge doesn't interpret.
type Mutation struct {
	Meta   map[string]interface{} `json:"meta"`
	JSON   map[string]interface{} `json:"json,omitempty"`
	Base64 string                 `json:"base64,omitempty"`
}

// ID returns the document id from the mutation's meta.
func (m *Mutation) ID() string {
	id, _ := m.Meta["id"].(string)
	return id
}

// Rev returns the Source-assigned revision from the mutation's meta.
func (m *Mutation) Rev() string {
	rev, _ := m.Meta["rev"].(string)
	return rev
}

// Deleted reports whether the mutation is a tombstone.
func (m *Mutation) Deleted() bool {
	deleted, _ := m.Meta["deleted"].(bool)
	return deleted
}

// Expiration returns the document's expiry as seconds since epoch, 0 for none.
func (m *Mutation) Expiration() int64 {
	expiration, _ := base.ToInt64(m.Meta["expiration"])
	return expiration
}

func (m *Mutation) attReason() string {
	reason, _ := m.Meta["att_reason"].(string)
	return reason
}

// payload extracts the document body to be indexed. A body that can't be recovered (bad
// base64, unparseable JSON) degrades to an empty stub rather than failing the mutation, so
// the Source's revision tracking stays consistent with what actually landed in the index.
func (m *Mutation) payload() map[string]interface{} {
	if m.attReason() == attReasonNonJSON {
		return map[string]interface{}{}
	}
	if m.JSON != nil {
		return m.JSON
	}
	if m.Base64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(m.Base64)
		if err != nil {
			base.Errorf(base.KeyCRUD, "Unable to decode base64, indexing stub for id: %q: %v", m.ID(), err)
			return map[string]interface{}{}
		}
		var parsed map[string]interface{}
		if err := base.JSONUnmarshal(decoded, &parsed); err != nil {
			base.Errorf(base.KeyCRUD, "Unable to parse decoded base64 data as JSON, indexing stub for id: %q: %v", m.ID(), err)
			return map[string]interface{}{}
		}
		if parsed == nil {
			return map[string]interface{}{}
		}
		return parsed
	}
	return map[string]interface{}{}
}

// BulkDocsResult is one acknowledgement in a _bulk_docs response. Rev always echoes the
// Source's revision from the input mutation, never anything the index returned.
type BulkDocsResult struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// RevsDiffEntry is one entry of a _revs_diff response, naming the revision the target
// doesn't have yet.
type RevsDiffEntry struct {
	Missing string `json:"missing"`
}
