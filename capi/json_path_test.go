package capi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePath(t *testing.T) {
	doc := map[string]interface{}{
		"meta": map[string]interface{}{"id": "user:123", "rev": "2-abc"},
		"doc": map[string]interface{}{
			"type": "user",
			"account": map[string]interface{}{
				"owner": "alice",
				"age":   float64(34),
			},
		},
	}

	assert.Equal(t, "user", ResolvePath(doc, "doc.type"))
	assert.Equal(t, "alice", ResolvePath(doc, "doc.account.owner"))
	assert.Equal(t, "user:123", ResolvePath(doc, "meta.id"))

	// Non-string terminals come back as-is.
	assert.Equal(t, float64(34), ResolvePath(doc, "doc.account.age"))

	// An empty trailing segment returns the parent's current child.
	assert.Equal(t, doc["doc"], ResolvePath(doc, "doc."))

	// Missing segments and descents through non-mappings resolve to nothing.
	assert.Nil(t, ResolvePath(doc, "doc.missing"))
	assert.Nil(t, ResolvePath(doc, "doc.type.further"))
	assert.Nil(t, ResolvePath(doc, "nope.nope"))
	assert.Nil(t, ResolvePath(doc, ""))
}
