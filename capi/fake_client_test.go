package capi

import (
	"fmt"
	"sync"
)

// fakeIndexClient is an in-memory IndexClient. Bulk responses can be scripted to exercise
// the retry paths; without a script, bulk ops are applied to the in-memory store and all
// items succeed.
type fakeIndexClient struct {
	mu      sync.Mutex
	indexes map[string]bool
	docs    map[string]map[string]interface{}

	bulkResponses []*BulkResponse
	bulkErr       error
	bulkCalls     [][]BulkOp

	multiGetFailures map[string]string // id -> per-item failure message

	indexCalls      []IndexOp
	createSuccesses int
}

func newFakeIndexClient(indexes ...string) *fakeIndexClient {
	c := &fakeIndexClient{
		indexes: make(map[string]bool),
		docs:    make(map[string]map[string]interface{}),
	}
	for _, index := range indexes {
		c.indexes[index] = true
	}
	return c
}

func docKey(index, docType, id string) string {
	return fmt.Sprintf("%s/%s/%s", index, docType, id)
}

func (c *fakeIndexClient) setDoc(index, docType, id string, source map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[docKey(index, docType, id)] = source
}

func (c *fakeIndexClient) getDoc(index, docType, id string) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docs[docKey(index, docType, id)]
}

func (c *fakeIndexClient) IndexExists(index string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexes[index], nil
}

func (c *fakeIndexClient) Get(index, docType, id string) (*GetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	source, ok := c.docs[docKey(index, docType, id)]
	if !ok {
		return &GetResult{Found: false}, nil
	}
	return &GetResult{Found: true, Source: source}, nil
}

func (c *fakeIndexClient) MultiGet(items []MultiGetItem) ([]MultiGetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	results := make([]MultiGetResult, 0, len(items))
	for _, item := range items {
		result := MultiGetResult{Index: item.Index, DocType: item.DocType, ID: item.ID}
		if message, ok := c.multiGetFailures[item.ID]; ok {
			result.Error = message
		} else if source, ok := c.docs[docKey(item.Index, item.DocType, item.ID)]; ok {
			result.Found = true
			result.Source = source
		}
		results = append(results, result)
	}
	return results, nil
}

func (c *fakeIndexClient) Bulk(ops []BulkOp) (*BulkResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opsCopy := make([]BulkOp, len(ops))
	copy(opsCopy, ops)
	c.bulkCalls = append(c.bulkCalls, opsCopy)

	if c.bulkErr != nil {
		return nil, c.bulkErr
	}
	if len(c.bulkResponses) > 0 {
		response := c.bulkResponses[0]
		c.bulkResponses = c.bulkResponses[1:]
		return response, nil
	}

	response := &BulkResponse{}
	for _, op := range ops {
		if op.Delete {
			delete(c.docs, docKey(op.Index, op.DocType, op.ID))
		} else {
			c.docs[docKey(op.Index, op.DocType, op.ID)] = op.Source
		}
		response.Items = append(response.Items, BulkItemResult{ID: op.ID})
	}
	return response, nil
}

func (c *fakeIndexClient) Index(op IndexOp) (*IndexResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.indexCalls = append(c.indexCalls, op)
	key := docKey(op.Index, op.DocType, op.ID)
	if op.CreateOnly {
		if _, exists := c.docs[key]; exists {
			return &IndexResult{Created: false}, nil
		}
		c.createSuccesses++
	}
	c.docs[key] = op.Source
	return &IndexResult{Created: true}, nil
}

var _ IndexClient = (*fakeIndexClient)(nil)
