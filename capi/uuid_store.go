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
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
)

const (
	bucketUUIDDocID = "bucketUUID"

	// uuidReconcileAttempts bounds the lookup/create loop. The loop normally converges on
	// the first or second pass; hitting the cap means the index is rejecting the
	// checkpoint-type writes entirely.
	uuidReconcileAttempts = 100

	// DefaultBucketUUIDCacheSize is the default capacity of the bucket UUID cache.
	DefaultBucketUUIDCacheSize = 1024
)

// UUIDStore hands out the stable per-bucket identity the Source observes to detect a
// re-created target. UUIDs live as checkpoint-type documents inside the index itself, so
// dropping and re-creating the index discards them and a fresh one gets generated - which
// is exactly the signal the Source needs.
//
// Concurrent replicators reconciling the same key converge without locking: the store
// uses a create-only write, so only one generated value ever lands, and losers pick up
// the winner's value on the re-read.
type UUIDStore struct {
	client            IndexClient
	checkpointDocType string
	cache             *base.LRUCache
}

func NewUUIDStore(client IndexClient, checkpointDocType string, cacheSize int) *UUIDStore {
	if cacheSize <= 0 {
		cacheSize = DefaultBucketUUIDCacheSize
	}
	cache, err := base.NewLRUCache(cacheSize)
	if err != nil {
		base.Panicf(base.KeyAll, "Error creating bucket UUID cache: %v", err)
	}
	return &UUIDStore{
		client:            client,
		checkpointDocType: checkpointDocType,
		cache:             cache,
	}
}

// GetBucketUUID returns the bucket's UUID, creating and persisting one if the index
// doesn't hold one yet. Results are cached; eviction is safe because the stored value
// never changes for the lifetime of the index.
func (s *UUIDStore) GetBucketUUID(pool, bucket string) (string, error) {
	if bucketUUID, ok := s.cache.Get(bucket); ok {
		base.Debugf(base.KeyReplicate, "found bucket UUID in cache for %q", base.MD(bucket))
		return bucketUUID, nil
	}

	bucketUUID, err := s.reconcileUUID(bucket, bucketUUIDDocID)
	if err != nil {
		return "", err
	}
	s.cache.Put(bucket, bucketUUID)
	return bucketUUID, nil
}

// GetVBucketUUID returns the stable UUID for one vbucket of the bucket. These are read
// once per replication stream start, so they aren't cached.
func (s *UUIDStore) GetVBucketUUID(pool, bucket string, vbucket int) (string, error) {
	return s.reconcileUUID(bucket, fmt.Sprintf("vbucket%dUUID", vbucket))
}

func (s *UUIDStore) reconcileUUID(bucket, docID string) (string, error) {
	exists, err := s.client.IndexExists(bucket)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", base.HTTPErrorf(http.StatusNotFound, "no index %q", bucket)
	}

	for tries := 0; tries < uuidReconcileAttempts; tries++ {
		storedUUID, err := s.lookupUUID(bucket, docID)
		if err != nil {
			return "", err
		}
		if storedUUID != "" {
			return storedUUID, nil
		}

		base.Debugf(base.KeyReplicate, "%s doesn't exist yet for %q, creating, attempt: %d", docID, base.MD(bucket), tries+1)
		if err := s.storeUUID(bucket, docID, NewUUID()); err != nil {
			return "", err
		}
	}
	return "", base.HTTPErrorf(http.StatusInternalServerError, "failed to find/create %s after %d tries", docID, uuidReconcileAttempts)
}

func (s *UUIDStore) lookupUUID(bucket, docID string) (string, error) {
	result, err := s.client.Get(bucket, s.checkpointDocType, docID)
	if err != nil {
		return "", err
	}
	if result == nil || !result.Found {
		return "", nil
	}
	doc, _ := result.Source["doc"].(map[string]interface{})
	if doc == nil {
		return "", nil
	}
	storedUUID, _ := doc["uuid"].(string)
	return storedUUID, nil
}

func (s *UUIDStore) storeUUID(bucket, docID, newUUID string) error {
	result, err := s.client.Index(IndexOp{
		Index:   bucket,
		DocType: s.checkpointDocType,
		ID:      docID,
		Source: map[string]interface{}{
			"doc": map[string]interface{}{"uuid": newUUID},
		},
		CreateOnly: true,
	})
	if err != nil {
		return err
	}
	if result == nil || !result.Created {
		// Lost the create race; the re-read picks up the winner's value.
		base.Debugf(base.KeyReplicate, "did not succeed creating %s for %q", docID, base.MD(bucket))
	}
	return nil
}

// NewUUID generates a random identifier in the hex-no-dashes form stored in UUID
// checkpoint documents.
func NewUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
