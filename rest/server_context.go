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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/capi"
)

// ServerContext holds the shared state of the bridge: the configuration it was launched
// with, the CAPI behavior handling requests, and the metrics plumbing.
type ServerContext struct {
	config   *StartupConfig
	behavior *capi.Behavior
	stats    *base.Stats
	registry *prometheus.Registry
}

// NewServerContext wires a behavior from the config and the given index client.
func NewServerContext(config *StartupConfig, client capi.IndexClient) (*ServerContext, error) {
	selector, err := buildTypeSelector(config)
	if err != nil {
		return nil, err
	}

	stats := &base.GlobalStats
	behavior := capi.NewBehavior(capi.BehaviorOptions{
		Client:                    client,
		TypeSelector:              selector,
		CheckpointDocumentType:    config.CheckpointDocumentType,
		ResolveConflicts:          config.ResolveConflicts != nil && *config.ResolveConflicts,
		MaxConcurrentRequests:     config.MaxConcurrentRequests,
		BulkIndexRetries:          config.BulkIndexRetries,
		BulkIndexRetryWaitMs:      config.BulkIndexRetryWaitMs,
		DocumentTypeParentFields:  config.DocumentTypeParentFields,
		DocumentTypeRoutingFields: config.DocumentTypeRoutingFields,
		BucketUUIDCacheSize:       config.BucketUUIDCacheSize,
		Stats:                     stats,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	if err := stats.RegisterPrometheusCollectors(registry); err != nil {
		return nil, err
	}

	return &ServerContext{
		config:   config,
		behavior: behavior,
		stats:    stats,
		registry: registry,
	}, nil
}

// Behavior exposes the server's CAPI behavior, mainly for tests.
func (sc *ServerContext) Behavior() *capi.Behavior {
	return sc.behavior
}

func buildTypeSelector(config *StartupConfig) (capi.TypeSelector, error) {
	defaultType := config.DefaultDocumentType
	if defaultType == "" {
		defaultType = capi.DefaultDocumentType
	}
	if len(config.DocumentTypePatterns) > 0 {
		return capi.NewRegexTypeSelector(defaultType, config.DocumentTypePatterns)
	}
	return capi.ConstantTypeSelector{DocType: defaultType}, nil
}
