//  Copyright (c) 2013 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package rest

import (
	"os"

	"dario.cat/mergo"
	pkgerrors "github.com/pkg/errors"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/capi"
)

const (
	// DefaultPublicInterface is the network interface the CAPI listener binds when the
	// config doesn't name one. 9091 is the port Couchbase XDCR dials for CAPI targets.
	DefaultPublicInterface = ":9091"

	// DefaultAdminInterface is loopback-only: the admin surface carries operational
	// state and has no authentication of its own.
	DefaultAdminInterface = "127.0.0.1:9092"

	// DefaultIndexURL is where the index engine is dialed unless configured.
	DefaultIndexURL = "http://localhost:9200"
)

// StartupConfig is the on-disk configuration of the bridge. The listener addresses, the index
// URL and the console log keys and level can also be set by command-line flags (see
// ParseCommandLine), which take precedence over the file.
type StartupConfig struct {
	Interface      string            `json:"interface,omitempty"`      // Public CAPI listener address
	AdminInterface string            `json:"adminInterface,omitempty"` // Admin listener address
	Index          IndexClientConfig `json:"index,omitempty"`          // Index engine endpoint

	CheckpointDocumentType string `json:"checkpointDocumentType,omitempty"` // Type for checkpoint/UUID docs
	DynamicTypePath        string `json:"dynamicTypePath,omitempty"`        // Reserved for document-field type selection
	DefaultDocumentType    string `json:"defaultDocumentType,omitempty"`    // Type when no pattern matches

	// DocumentTypePatterns maps a type name to a regular expression over document ids;
	// a matching id is filed under that type.
	DocumentTypePatterns map[string]string `json:"documentTypePatterns,omitempty"`

	ResolveConflicts      *bool `json:"resolveConflicts,omitempty"`      // Suppress revs the index already holds
	MaxConcurrentRequests int64 `json:"maxConcurrentRequests,omitempty"` // Admission ceiling
	BulkIndexRetries      int   `json:"bulkIndexRetries,omitempty"`      // Bulk attempt cap
	BulkIndexRetryWaitMs  int   `json:"bulkIndexRetryWaitMs,omitempty"`  // Wait between bulk attempts
	BucketUUIDCacheSize   int   `json:"bucketUUIDCacheSize,omitempty"`   // Entries in the bucket UUID cache

	DocumentTypeParentFields  map[string]string `json:"documentTypeParentFields,omitempty"`  // type -> dotted path
	DocumentTypeRoutingFields map[string]string `json:"documentTypeRoutingFields,omitempty"` // type -> dotted path

	Logging LoggingConfig `json:"logging,omitempty"`
}

type IndexClientConfig struct {
	URL string `json:"url,omitempty"`
}

type LoggingConfig struct {
	Console base.ConsoleLoggerConfig `json:"console,omitempty"`
}

// DefaultStartupConfig returns the config the bridge runs with when given nothing else.
func DefaultStartupConfig() StartupConfig {
	return StartupConfig{
		Interface:              DefaultPublicInterface,
		AdminInterface:         DefaultAdminInterface,
		Index:                  IndexClientConfig{URL: DefaultIndexURL},
		CheckpointDocumentType: capi.DefaultCheckpointDocumentType,
		DefaultDocumentType:    capi.DefaultDocumentType,
		MaxConcurrentRequests:  capi.DefaultMaxConcurrentRequests,
		BulkIndexRetries:       capi.DefaultBulkIndexRetries,
		BulkIndexRetryWaitMs:   capi.DefaultBulkIndexRetryWaitMs,
		BucketUUIDCacheSize:    capi.DefaultBucketUUIDCacheSize,
	}
}

// LoadStartupConfigFromPath reads a StartupConfig from a JSON file.
func LoadStartupConfigFromPath(path string) (*StartupConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "opening config file %q", path)
	}
	defer func() { _ = file.Close() }()

	var config StartupConfig
	if err := base.JSONDecoder(file).Decode(&config); err != nil {
		return nil, pkgerrors.Wrapf(err, "parsing config file %q", path)
	}
	return &config, nil
}

// Merge overlays the non-zero fields of override onto c.
func (c *StartupConfig) Merge(override *StartupConfig) error {
	return mergo.Merge(c, override, mergo.WithOverride)
}
