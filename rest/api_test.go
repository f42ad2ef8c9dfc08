package rest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/capi"
)

// memoryIndexClient is a minimal in-memory capi.IndexClient for driving the REST API.
type memoryIndexClient struct {
	mu      sync.Mutex
	indexes map[string]bool
	docs    map[string]map[string]interface{}
}

func newMemoryIndexClient(indexes ...string) *memoryIndexClient {
	c := &memoryIndexClient{
		indexes: make(map[string]bool),
		docs:    make(map[string]map[string]interface{}),
	}
	for _, index := range indexes {
		c.indexes[index] = true
	}
	return c
}

func (c *memoryIndexClient) key(index, docType, id string) string {
	return fmt.Sprintf("%s/%s/%s", index, docType, id)
}

func (c *memoryIndexClient) IndexExists(index string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexes[index], nil
}

func (c *memoryIndexClient) Get(index, docType, id string) (*capi.GetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	source, ok := c.docs[c.key(index, docType, id)]
	return &capi.GetResult{Found: ok, Source: source}, nil
}

func (c *memoryIndexClient) MultiGet(items []capi.MultiGetItem) ([]capi.MultiGetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	results := make([]capi.MultiGetResult, 0, len(items))
	for _, item := range items {
		source, ok := c.docs[c.key(item.Index, item.DocType, item.ID)]
		results = append(results, capi.MultiGetResult{
			Index: item.Index, DocType: item.DocType, ID: item.ID,
			Found: ok, Source: source,
		})
	}
	return results, nil
}

func (c *memoryIndexClient) Bulk(ops []capi.BulkOp) (*capi.BulkResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	response := &capi.BulkResponse{}
	for _, op := range ops {
		if op.Delete {
			delete(c.docs, c.key(op.Index, op.DocType, op.ID))
		} else {
			c.docs[c.key(op.Index, op.DocType, op.ID)] = op.Source
		}
		response.Items = append(response.Items, capi.BulkItemResult{ID: op.ID})
	}
	return response, nil
}

func (c *memoryIndexClient) Index(op capi.IndexOp) (*capi.IndexResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(op.Index, op.DocType, op.ID)
	if op.CreateOnly {
		if _, exists := c.docs[key]; exists {
			return &capi.IndexResult{Created: false}, nil
		}
	}
	c.docs[key] = op.Source
	return &capi.IndexResult{Created: true}, nil
}

var _ capi.IndexClient = (*memoryIndexClient)(nil)

func newTestServer(t *testing.T, indexes ...string) (*httptest.Server, *ServerContext) {
	config := DefaultStartupConfig()
	sc, err := NewServerContext(&config, newMemoryIndexClient(indexes...))
	require.NoError(t, err)
	server := httptest.NewServer(CreatePublicHandler(sc))
	t.Cleanup(server.Close)
	return server, sc
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	request, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	return response
}

func readJSONBody(t *testing.T, response *http.Response, into interface{}) {
	defer func() { _ = response.Body.Close() }()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.NoError(t, base.JSONUnmarshal(body, into))
}

func TestRootReturnsWelcome(t *testing.T) {
	server, _ := newTestServer(t)

	response := doRequest(t, "GET", server.URL+"/", "")
	require.Equal(t, http.StatusOK, response.StatusCode)

	var welcome map[string]interface{}
	readJSONBody(t, response, &welcome)
	assert.Equal(t, "elasticsearch-transport-couchbase", welcome["welcome"])
	assert.Contains(t, response.Header.Get("Server"), "Elasticsearch Transport Couchbase")
}

func TestDatabaseExistence(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "HEAD", server.URL+"/beer-sample/", "")
	_ = response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response = doRequest(t, "HEAD", server.URL+"/no-such-db/", "")
	_ = response.Body.Close()
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response = doRequest(t, "GET", server.URL+"/beer-sample/", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var details map[string]interface{}
	readJSONBody(t, response, &details)
	assert.Equal(t, "beer-sample", details["db_name"])
}

func TestCreateAndDeleteDatabaseRefused(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "PUT", server.URL+"/newdb/", "")
	_ = response.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, response.StatusCode)

	response = doRequest(t, "DELETE", server.URL+"/beer-sample/", "")
	_ = response.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, response.StatusCode)
}

func TestRevsDiffEndpoint(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "POST", server.URL+"/beer-sample/_revs_diff",
		`{"beer:1":"2-abc","beer:2":"1-def"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)

	var diff map[string]map[string]string
	readJSONBody(t, response, &diff)
	assert.Equal(t, "2-abc", diff["beer:1"]["missing"])
	assert.Equal(t, "1-def", diff["beer:2"]["missing"])
}

func TestBulkDocsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "POST", server.URL+"/beer-sample/_bulk_docs",
		`{"docs":[
			{"meta":{"id":"beer:1","rev":"1-a"},"json":{"name":"pale ale"}},
			{"meta":{"id":"beer:2","rev":"2-b","deleted":true}}
		]}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)

	var acks []map[string]string
	readJSONBody(t, response, &acks)
	require.Len(t, acks, 2)
	assert.Equal(t, map[string]string{"id": "beer:1", "rev": "1-a"}, acks[0])
	assert.Equal(t, map[string]string{"id": "beer:2", "rev": "2-b"}, acks[1])
}

func TestBulkDocsRejectsBadJSON(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "POST", server.URL+"/beer-sample/_bulk_docs", `{"docs": nope}`)
	_ = response.Body.Close()
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestEnsureFullCommitEndpoint(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "POST", server.URL+"/beer-sample/_ensure_full_commit", "")
	require.Equal(t, http.StatusCreated, response.StatusCode)

	var body map[string]interface{}
	readJSONBody(t, response, &body)
	assert.Equal(t, true, body["ok"])
}

func TestLocalDocRoundTrip(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "GET", server.URL+"/beer-sample/_local/ckpt-1", "")
	_ = response.Body.Close()
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response = doRequest(t, "PUT", server.URL+"/beer-sample/_local/ckpt-1", `{"lastSequence":"42"}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var putResult map[string]interface{}
	readJSONBody(t, response, &putResult)
	assert.Equal(t, "ckpt-1", putResult["id"])
	rev, _ := putResult["rev"].(string)
	require.True(t, strings.HasPrefix(rev, "1-"))

	response = doRequest(t, "GET", server.URL+"/beer-sample/_local/ckpt-1", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var doc map[string]interface{}
	readJSONBody(t, response, &doc)
	assert.Equal(t, "42", doc["lastSequence"])
	assert.Equal(t, rev, doc["_rev"])
}

func TestDocRoundTrip(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "PUT", server.URL+"/beer-sample/beer:1", `{"name":"stout"}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	_ = response.Body.Close()

	response = doRequest(t, "GET", server.URL+"/beer-sample/beer:1", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	var doc map[string]interface{}
	readJSONBody(t, response, &doc)
	assert.Equal(t, "stout", doc["name"])
}

func TestAttachmentsRefused(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	response := doRequest(t, "GET", server.URL+"/beer-sample/beer:1/photo.png", "")
	_ = response.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, response.StatusCode)
}

func TestUnknownURL(t *testing.T) {
	server, _ := newTestServer(t)

	response := doRequest(t, "DELETE", server.URL+"/", "")
	_ = response.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
}

func TestAdminStatsEndpoint(t *testing.T) {
	config := DefaultStartupConfig()
	sc, err := NewServerContext(&config, newMemoryIndexClient("beer-sample"))
	require.NoError(t, err)
	admin := httptest.NewServer(CreateAdminHandler(sc))
	defer admin.Close()

	// Drive one _revs_diff request first.
	_, err = sc.Behavior().RevsDiff("beer-sample", map[string]string{"x": "1-a"})
	require.NoError(t, err)

	response := doRequest(t, "GET", admin.URL+"/_stats", "")
	require.Equal(t, http.StatusOK, response.StatusCode)

	var stats map[string]interface{}
	readJSONBody(t, response, &stats)
	revsDiff, ok := stats["_revs_diff"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), revsDiff["totalCount"])
	assert.Contains(t, stats, "_bulk_docs")
	assert.Contains(t, stats, "tooManyConcurrentRequestsErrors")
}

func TestAdminMetricsEndpoint(t *testing.T) {
	config := DefaultStartupConfig()
	sc, err := NewServerContext(&config, newMemoryIndexClient())
	require.NoError(t, err)
	admin := httptest.NewServer(CreateAdminHandler(sc))
	defer admin.Close()

	response := doRequest(t, "GET", admin.URL+"/metrics", "")
	defer func() { _ = response.Body.Close() }()
	require.Equal(t, http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "capi_bridge_bulk_docs_requests_total")
}

func TestVBucketDatabaseAddressing(t *testing.T) {
	server, _ := newTestServer(t, "beer-sample")

	// XDCR addresses a vbucket database with the slash URL-encoded.
	response := doRequest(t, "POST", server.URL+"/beer-sample%2F512/_revs_diff", `{"x":"1-a"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)

	var diff map[string]map[string]string
	readJSONBody(t, response, &diff)
	assert.Equal(t, "1-a", diff["x"]["missing"])
}
