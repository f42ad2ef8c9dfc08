//  Copyright (c) 2012 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package capi

// IndexClient is the contract the replication behavior needs from the index engine. All
// calls are synchronous round trips; implementations must be safe for concurrent use.
type IndexClient interface {
	// IndexExists reports whether the named index exists.
	IndexExists(index string) (bool, error)

	// Get fetches a single document's source.
	Get(index, docType, id string) (*GetResult, error)

	// MultiGet fetches several documents in one round trip. The result slice carries one
	// entry per requested item, in request order; per-item failures are reported in the
	// entry rather than as an overall error.
	MultiGet(items []MultiGetItem) ([]MultiGetResult, error)

	// Bulk submits a batch of index/delete operations in one request. The response items
	// are in operation order. A nil response with a nil error is treated as fatal by
	// callers, so implementations should avoid it.
	Bulk(ops []BulkOp) (*BulkResponse, error)

	// Index writes a single document. With CreateOnly set, an existing document makes
	// the write a no-op reported via IndexResult.Created rather than an error.
	Index(op IndexOp) (*IndexResult, error)
}

// MultiGetItem identifies one document in a MultiGet request.
type MultiGetItem struct {
	Index   string
	DocType string
	ID      string
}

// MultiGetResult is the outcome of one MultiGet item.
type MultiGetResult struct {
	Index   string
	DocType string
	ID      string
	Found   bool
	Source  map[string]interface{}
	Error   string // per-item failure message, empty on success
}

// GetResult is the outcome of a single-document Get.
type GetResult struct {
	Found  bool
	Source map[string]interface{}
}

// BulkOp is one operation of a bulk request: an index write, or a delete when Delete is
// set (in which case Source, TTL, Parent and Routing are ignored).
type BulkOp struct {
	Delete    bool
	Index     string
	DocType   string
	ID        string
	Source    map[string]interface{}
	TTLMillis int64  // 0 means no TTL
	Parent    string // parent document id, empty for none
	Routing   string // shard routing value, empty for none
}

// BulkResponse carries per-item outcomes of a bulk request, in operation order.
type BulkResponse struct {
	Items []BulkItemResult
}

// HasFailures reports whether any item in the response failed.
func (r *BulkResponse) HasFailures() bool {
	for _, item := range r.Items {
		if item.Failed {
			return true
		}
	}
	return false
}

// BulkItemResult is the outcome of one bulk operation.
type BulkItemResult struct {
	ID             string
	Failed         bool
	FailureMessage string
}

// IndexOp is a single-document write.
type IndexOp struct {
	Index      string
	DocType    string
	ID         string
	Source     map[string]interface{}
	CreateOnly bool // lose the write silently if the document already exists
}

// IndexResult is the outcome of a single-document write.
type IndexResult struct {
	Created bool
}
