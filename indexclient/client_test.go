package indexclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/capi"
)

func TestIndexExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/beer-sample" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL)

	exists, err := client.IndexExists("beer-sample")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.IndexExists("nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/beer-sample/couchbaseDocument/beer:1":
			_, _ = w.Write([]byte(`{"_index":"beer-sample","_id":"beer:1","found":true,"_source":{"meta":{"rev":"2-abc"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"found":false}`))
		}
	}))
	defer server.Close()

	client := New(server.URL)

	result, err := client.Get("beer-sample", "couchbaseDocument", "beer:1")
	require.NoError(t, err)
	require.True(t, result.Found)
	meta := result.Source["meta"].(map[string]interface{})
	assert.Equal(t, "2-abc", meta["rev"])

	result, err = client.Get("beer-sample", "couchbaseDocument", "missing")
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestMultiGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_mget", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"_index":"beer-sample"`)
		assert.Contains(t, string(body), `"_id":"x"`)
		_, _ = w.Write([]byte(`{"docs":[
			{"_index":"beer-sample","_type":"couchbaseDocument","_id":"x","found":true,"_source":{"meta":{"rev":"2-abc"}}},
			{"_index":"beer-sample","_type":"couchbaseDocument","_id":"y","found":false},
			{"_index":"beer-sample","_type":"couchbaseDocument","_id":"z","error":"shard unavailable"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL)
	results, err := client.MultiGet([]capi.MultiGetItem{
		{Index: "beer-sample", DocType: "couchbaseDocument", ID: "x"},
		{Index: "beer-sample", DocType: "couchbaseDocument", ID: "y"},
		{Index: "beer-sample", DocType: "couchbaseDocument", ID: "z"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Found)
	assert.Empty(t, results[0].Error)
	assert.False(t, results[1].Found)
	assert.Equal(t, "shard unavailable", results[2].Error)
}

func TestBulk(t *testing.T) {
	var requestBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_bulk", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		requestBody = string(body)
		_, _ = w.Write([]byte(`{"took":3,"errors":true,"items":[
			{"index":{"_index":"beer-sample","_type":"couchbaseDocument","_id":"a","status":201}},
			{"delete":{"_index":"beer-sample","_type":"couchbaseDocument","_id":"b","status":200}},
			{"index":{"_index":"beer-sample","_type":"couchbaseDocument","_id":"c","status":429,"error":"EsRejectedExecutionException[rejected]"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL)
	response, err := client.Bulk([]capi.BulkOp{
		{Index: "beer-sample", DocType: "couchbaseDocument", ID: "a", Source: map[string]interface{}{"meta": map[string]interface{}{"id": "a"}}, TTLMillis: 5000, Routing: "r1"},
		{Delete: true, Index: "beer-sample", DocType: "couchbaseDocument", ID: "b"},
		{Index: "beer-sample", DocType: "couchbaseDocument", ID: "c", Source: map[string]interface{}{}},
	})
	require.NoError(t, err)
	require.Len(t, response.Items, 3)

	assert.Equal(t, capi.BulkItemResult{ID: "a"}, response.Items[0])
	assert.Equal(t, capi.BulkItemResult{ID: "b"}, response.Items[1])
	assert.True(t, response.Items[2].Failed)
	assert.Contains(t, response.Items[2].FailureMessage, "EsRejectedExecutionException")
	assert.True(t, response.HasFailures())

	// The request body is newline-delimited action/source pairs; deletes have no source.
	lines := strings.Split(strings.TrimSpace(requestBody), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], `"index"`)
	assert.Contains(t, lines[0], `"_ttl":5000`)
	assert.Contains(t, lines[0], `"_routing":"r1"`)
	assert.Contains(t, lines[1], `"meta"`)
	assert.Contains(t, lines[2], `"delete"`)
	assert.Contains(t, lines[3], `"index"`)
	assert.NotContains(t, lines[3], `"_ttl"`)
}

func TestIndexCreateOnlyConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		if r.URL.Query().Get("op_type") == "create" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"DocumentAlreadyExistsException"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(server.URL)

	result, err := client.Index(capi.IndexOp{
		Index: "beer-sample", DocType: "couchbaseCheckpoint", ID: "bucketUUID",
		Source: map[string]interface{}{"doc": map[string]interface{}{"uuid": "abc"}}, CreateOnly: true,
	})
	require.NoError(t, err)
	assert.False(t, result.Created)

	result, err = client.Index(capi.IndexOp{
		Index: "beer-sample", DocType: "couchbaseCheckpoint", ID: "bucketUUID",
		Source: map[string]interface{}{"doc": map[string]interface{}{"uuid": "abc"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	client := New(server.URL)

	_, err := client.Bulk([]capi.BulkOp{{Index: "i", DocType: "t", ID: "x", Source: map[string]interface{}{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	_, err = client.MultiGet([]capi.MultiGetItem{{Index: "i", DocType: "t", ID: "x"}})
	require.Error(t, err)
}
