//  Copyright (c) 2012 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package rest

import (
	"net/http"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/capi"
)

// HTTP handler for the root ("/")
func (h *handler) handleRoot() error {
	h.writeJSON(h.server.behavior.Welcome())
	return nil
}

// HTTP handler for GET or HEAD on a database. A HEAD only reports existence; a GET also
// returns the details record.
func (h *handler) handleGetDB() error {
	if h.rq.Method == "HEAD" {
		return h.server.behavior.DatabaseExists(h.databaseName())
	}
	details, err := h.server.behavior.GetDatabaseDetails(h.databaseName())
	if err != nil {
		return err
	}
	h.writeJSON(details)
	return nil
}

// HTTP handler for PUT on a database: always refused, indexes are managed externally.
func (h *handler) handleCreateDB() error {
	return h.server.behavior.CreateDatabase(h.databaseName())
}

// HTTP handler for DELETE on a database: always refused, like handleCreateDB.
func (h *handler) handleDeleteDB() error {
	return h.server.behavior.DeleteDatabase(h.databaseName())
}

// HTTP handler for _ensure_full_commit
func (h *handler) handleEFC() error {
	if err := h.server.behavior.EnsureFullCommit(h.databaseName()); err != nil {
		return err
	}
	h.writeJSONStatus(http.StatusCreated, map[string]interface{}{"ok": true})
	return nil
}

// HTTP handler for _revs_diff. Body is {id: rev, ...}; the response names the revisions
// the index doesn't have.
func (h *handler) handleRevsDiff() error {
	var input map[string]string
	if err := h.readJSONInto(&input); err != nil {
		return err
	}

	response, err := h.server.behavior.RevsDiff(h.databaseName(), input)
	if err != nil {
		return err
	}
	h.writeJSON(response)
	return nil
}

// HTTP handler for _bulk_docs. Body is {docs: [mutation, ...]}; a 201 response carries one
// {id, rev} acknowledgement per written mutation.
func (h *handler) handleBulkDocs() error {
	var body struct {
		Docs []capi.Mutation `json:"docs"`
	}
	if err := h.readJSONInto(&body); err != nil {
		return err
	}

	results, err := h.server.behavior.BulkDocs(h.databaseName(), body.Docs)
	if err != nil {
		return err
	}
	h.writeJSONStatus(http.StatusCreated, results)
	return nil
}

// HTTP handler for a GET of a _local (checkpoint) document
func (h *handler) handleGetLocalDoc() error {
	doc, err := h.server.behavior.GetLocalDocument(h.databaseName(), h.PathVar("docid"))
	if err != nil {
		return err
	}
	if doc == nil {
		return kNotFoundError
	}
	// Checkpoint payloads carry large sequence numbers; keep them integral on the way
	// back out or the Source's JSON parser chokes on scientific notation.
	h.writeJSON(base.FixJSONNumbers(doc))
	return nil
}

// HTTP handler for a PUT of a _local (checkpoint) document
func (h *handler) handlePutLocalDoc() error {
	docID := h.PathVar("docid")
	var doc map[string]interface{}
	if err := h.readJSONInto(&doc); err != nil {
		return err
	}

	rev, err := h.server.behavior.StoreLocalDocument(h.databaseName(), docID, doc)
	if err != nil {
		return err
	}
	h.writeJSONStatus(http.StatusCreated, map[string]interface{}{"ok": true, "id": docID, "rev": rev})
	return nil
}

// HTTP handler for a GET of a document
func (h *handler) handleGetDoc() error {
	doc, err := h.server.behavior.GetDocument(h.databaseName(), h.PathVar("docid"))
	if err != nil {
		return err
	}
	if doc == nil {
		return kNotFoundError
	}
	h.writeJSON(base.FixJSONNumbers(doc))
	return nil
}

// HTTP handler for a PUT of a document
func (h *handler) handlePutDoc() error {
	docID := h.PathVar("docid")
	var doc map[string]interface{}
	if err := h.readJSONInto(&doc); err != nil {
		return err
	}

	rev, err := h.server.behavior.StoreDocument(h.databaseName(), docID, doc)
	if err != nil {
		return err
	}
	h.writeJSONStatus(http.StatusCreated, map[string]interface{}{"ok": true, "id": docID, "rev": rev})
	return nil
}

// HTTP handler for attachment URLs: always refused. The 501 keeps the Source from
// retrying what will never succeed.
func (h *handler) handleAttachment() error {
	return base.HTTPErrorf(http.StatusNotImplemented, "Attachments are not supported")
}
