//  Copyright (c) 2012 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

// Package indexclient is a thin synchronous HTTP client for an Elasticsearch-style REST
// API, implementing the capi.IndexClient contract: index existence checks, single and
// multi document gets, single-document writes, and bulk index/delete batches.
package indexclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/capi"
)

const defaultRequestTimeout = 60 * time.Second

// Client talks to one index engine endpoint. Safe for concurrent use; the underlying
// http.Client pools connections.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the engine at baseURL (e.g. "http://localhost:9200").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

var _ capi.IndexClient = (*Client)(nil)

// IndexExists probes the index with a HEAD request.
func (c *Client) IndexExists(index string) (bool, error) {
	response, err := c.http.Head(c.url(index))
	if err != nil {
		return false, pkgerrors.Wrapf(err, "checking index %q", index)
	}
	defer func() { _ = response.Body.Close() }()

	switch response.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, &base.IndexError{Op: "exists", Message: fmt.Sprintf("unexpected status %d for index %q", response.StatusCode, index)}
}

// Get fetches one document's source.
func (c *Client) Get(index, docType, id string) (*capi.GetResult, error) {
	response, err := c.http.Get(c.url(index, docType, id))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "getting %s/%s/%s", index, docType, id)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode == http.StatusNotFound {
		// Consume the body so the connection can be reused.
		_, _ = io.Copy(io.Discard, response.Body)
		return &capi.GetResult{Found: false}, nil
	}
	if response.StatusCode != http.StatusOK {
		return nil, c.statusError("get", response)
	}

	var body struct {
		Found  bool                   `json:"found"`
		Source map[string]interface{} `json:"_source"`
	}
	if err := base.JSONDecoder(response.Body).Decode(&body); err != nil {
		return nil, pkgerrors.Wrapf(err, "decoding get response for %s/%s/%s", index, docType, id)
	}
	return &capi.GetResult{Found: body.Found, Source: body.Source}, nil
}

// MultiGet fetches several documents in one _mget round trip.
func (c *Client) MultiGet(items []capi.MultiGetItem) ([]capi.MultiGetResult, error) {
	type mgetDoc struct {
		Index   string `json:"_index"`
		DocType string `json:"_type"`
		ID      string `json:"_id"`
	}
	request := struct {
		Docs []mgetDoc `json:"docs"`
	}{Docs: make([]mgetDoc, 0, len(items))}
	for _, item := range items {
		request.Docs = append(request.Docs, mgetDoc{Index: item.Index, DocType: item.DocType, ID: item.ID})
	}

	body, err := base.JSONMarshal(request)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encoding _mget request")
	}

	response, err := c.http.Post(c.url("_mget"), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "_mget request")
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		return nil, c.statusError("mget", response)
	}

	var decoded struct {
		Docs []struct {
			Index   string                 `json:"_index"`
			DocType string                 `json:"_type"`
			ID      string                 `json:"_id"`
			Found   bool                   `json:"found"`
			Source  map[string]interface{} `json:"_source"`
			Error   string                 `json:"error"`
		} `json:"docs"`
	}
	if err := base.JSONDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding _mget response")
	}

	results := make([]capi.MultiGetResult, 0, len(decoded.Docs))
	for _, doc := range decoded.Docs {
		results = append(results, capi.MultiGetResult{
			Index:   doc.Index,
			DocType: doc.DocType,
			ID:      doc.ID,
			Found:   doc.Found,
			Source:  doc.Source,
			Error:   doc.Error,
		})
	}
	return results, nil
}

// Bulk submits a batch of index/delete operations as one _bulk request, in the
// newline-delimited action/source format the engine expects.
func (c *Client) Bulk(ops []capi.BulkOp) (*capi.BulkResponse, error) {
	var buffer bytes.Buffer
	for _, op := range ops {
		if err := writeBulkOp(&buffer, op); err != nil {
			return nil, err
		}
	}

	response, err := c.http.Post(c.url("_bulk"), "application/x-ndjson", &buffer)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "_bulk request")
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		return nil, c.statusError("bulk", response)
	}

	var decoded struct {
		Items []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  string `json:"error"`
		} `json:"items"`
	}
	if err := base.JSONDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding _bulk response")
	}

	result := &capi.BulkResponse{Items: make([]capi.BulkItemResult, 0, len(decoded.Items))}
	for _, item := range decoded.Items {
		// Each item is keyed by its action ("index" or "delete"); there is exactly one.
		for _, outcome := range item {
			result.Items = append(result.Items, capi.BulkItemResult{
				ID:             outcome.ID,
				Failed:         outcome.Error != "",
				FailureMessage: outcome.Error,
			})
		}
	}
	return result, nil
}

type bulkActionMeta struct {
	Index     string `json:"_index"`
	DocType   string `json:"_type"`
	ID        string `json:"_id"`
	TTLMillis int64  `json:"_ttl,omitempty"`
	Parent    string `json:"_parent,omitempty"`
	Routing   string `json:"_routing,omitempty"`
}

func writeBulkOp(buffer *bytes.Buffer, op capi.BulkOp) error {
	meta := bulkActionMeta{Index: op.Index, DocType: op.DocType, ID: op.ID}
	action := "index"
	if op.Delete {
		action = "delete"
	} else {
		meta.TTLMillis = op.TTLMillis
		meta.Parent = op.Parent
		meta.Routing = op.Routing
	}

	actionLine, err := base.JSONMarshal(map[string]bulkActionMeta{action: meta})
	if err != nil {
		return pkgerrors.Wrapf(err, "encoding bulk action for %q", op.ID)
	}
	buffer.Write(actionLine)
	buffer.WriteByte('\n')

	if !op.Delete {
		sourceLine, err := base.JSONMarshal(op.Source)
		if err != nil {
			return pkgerrors.Wrapf(err, "encoding bulk source for %q", op.ID)
		}
		buffer.Write(sourceLine)
		buffer.WriteByte('\n')
	}
	return nil
}

// Index writes one document. A create-only write that loses to an existing document
// reports Created false instead of an error, which is what the UUID store's
// single-write-wins reconciliation depends on.
func (c *Client) Index(op capi.IndexOp) (*capi.IndexResult, error) {
	body, err := base.JSONMarshal(op.Source)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "encoding document %q", op.ID)
	}

	target := c.url(op.Index, op.DocType, op.ID)
	if op.CreateOnly {
		target += "?op_type=create"
	}
	request, err := http.NewRequest(http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "building index request for %q", op.ID)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "indexing %q", op.ID)
	}
	defer func() { _ = response.Body.Close() }()

	switch {
	case response.StatusCode == http.StatusConflict && op.CreateOnly:
		_, _ = io.Copy(io.Discard, response.Body)
		return &capi.IndexResult{Created: false}, nil
	case response.StatusCode == http.StatusOK, response.StatusCode == http.StatusCreated:
		_, _ = io.Copy(io.Discard, response.Body)
		return &capi.IndexResult{Created: true}, nil
	}
	return nil, c.statusError("index", response)
}

func (c *Client) url(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) statusError(op string, response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
	return &base.IndexError{Op: op, Message: fmt.Sprintf("status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))}
}
