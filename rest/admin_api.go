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
	"expvar"
	"fmt"
	"net/http"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
)

// HTTP handler for _stats: the replication endpoint counters in the shape the CAPI
// protocol's operator tooling reads.
func (h *handler) handleStats() error {
	h.writeJSON(h.server.behavior.Stats())
	return nil
}

// HTTP handler for _expvar: all published expvars, including the bridge counters.
func (h *handler) handleExpvar() error {
	h.setHeader("Content-Type", "application/json; charset=utf-8")
	_, _ = fmt.Fprintf(h.response, "{\n")
	first := true
	expvar.Do(func(kv expvar.KeyValue) {
		if !first {
			_, _ = fmt.Fprintf(h.response, ",\n")
		}
		first = false
		_, _ = fmt.Fprintf(h.response, "%q: %s", kv.Key, kv.Value)
	})
	_, _ = fmt.Fprintf(h.response, "\n}\n")
	return nil
}

// HTTP handler for a GET of _logging: the currently enabled console log keys.
func (h *handler) handleGetLogging() error {
	h.writeJSON(base.GetLogKeys())
	return nil
}

// HTTP handler for a PUT or POST of _logging. Body is {key: bool, ...}; a PUT replaces
// the enabled set, a POST updates it.
func (h *handler) handleSetLogging() error {
	var keys map[string]bool
	if err := h.readJSONInto(&keys); err != nil {
		return err
	}
	base.UpdateLogKeys(keys, h.rq.Method == http.MethodPut)
	return nil
}
