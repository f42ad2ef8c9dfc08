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
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
)

// If set to true, JSON output will be pretty-printed.
var PrettyPrint bool = false

var lastSerialNum uint64 = 0

var kNotFoundError = base.HTTPErrorf(http.StatusNotFound, "missing")

// Encapsulates the state of handling an HTTP request.
type handler struct {
	server         *ServerContext
	rq             *http.Request
	response       http.ResponseWriter
	status         int
	statusMessage  string
	privs          handlerPrivs
	startTime      time.Time
	serialNumber   uint64
	loggedDuration bool
}

type handlerPrivs int

const (
	publicPrivs = iota // CAPI endpoints the Source drives
	adminPrivs         // Operator endpoints on the admin port
)

type handlerMethod func(*handler) error

// makeHandler creates an http.Handler that runs the given method.
func makeHandler(server *ServerContext, privs handlerPrivs, method handlerMethod) http.Handler {
	return http.HandlerFunc(func(r http.ResponseWriter, rq *http.Request) {
		h := newHandler(server, privs, r, rq)
		err := h.invoke(method)
		h.writeError(err)
		h.logDuration(true)
	})
}

func newHandler(server *ServerContext, privs handlerPrivs, r http.ResponseWriter, rq *http.Request) *handler {
	return &handler{
		server:       server,
		privs:        privs,
		rq:           rq,
		response:     r,
		status:       http.StatusOK,
		serialNumber: atomic.AddUint64(&lastSerialNum, 1),
		startTime:    time.Now(),
	}
}

// Top-level handler call. It's passed a pointer to the specific method to run.
func (h *handler) invoke(method handlerMethod) error {
	h.setHeader("Server", base.VersionString)
	h.logRequestLine()
	return method(h)
}

func (h *handler) logRequestLine() {
	proto := ""
	if h.rq.ProtoMajor >= 2 {
		proto = " HTTP/2"
	}
	base.Infof(base.KeyHTTP, " %s: %s %s%s", h.formatSerialNumber(), h.rq.Method, base.SanitizeRequestURL(h.rq.URL), proto)
}

func (h *handler) logDuration(realTime bool) {
	if h.loggedDuration {
		return
	}
	h.loggedDuration = true

	var duration time.Duration
	if realTime {
		duration = time.Since(h.startTime)
	}

	// Log timings/status codes for errors under the HTTP log key
	// and the HTTPResp log key for everything else.
	logKey := base.KeyHTTPResp
	if h.status >= 300 {
		logKey = base.KeyHTTP
	}

	base.Infof(logKey, "%s:     --> %d %s  (%.1f ms)",
		h.formatSerialNumber(), h.status, h.statusMessage,
		float64(duration)/float64(time.Millisecond),
	)
}

func (h *handler) PathVar(name string) string {
	v := mux.Vars(h.rq)[name]

	//Escape special chars i.e. '+' otherwise they are removed by QueryUnescape()
	v = strings.Replace(v, "+", "%2B", -1)

	// The router matches the still-encoded path (so database names may carry %2F), which
	// means the path variables arrive encoded and have to be unescaped here.
	v, _ = url.QueryUnescape(v)
	return v
}

// databaseName returns the raw database path component, the full
// <name>[/<suffix>][;<uuid>] string the Source addressed.
func (h *handler) databaseName() string {
	return h.PathVar("db")
}

// readJSONInto parses the request body into a custom structure.
func (h *handler) readJSONInto(into interface{}) error {
	if err := base.JSONDecoder(h.rq.Body).Decode(into); err != nil {
		return base.HTTPErrorf(http.StatusBadRequest, "Invalid JSON: %v", err)
	}
	return nil
}

//////// RESPONSES:

func (h *handler) setHeader(name string, value string) {
	h.response.Header().Set(name, value)
}

func (h *handler) setStatus(status int, message string) {
	h.status = status
	h.statusMessage = message
}

// writeJSONStatus writes an object to the response in JSON format.
// If status is nonzero, the header will be written with that status.
func (h *handler) writeJSONStatus(status int, value interface{}) {
	jsonOut, err := base.JSONMarshal(value)
	if err != nil {
		base.Warnf(base.KeyAll, "Couldn't serialize JSON for %v : %s", base.UD(value), err)
		h.writeStatus(http.StatusInternalServerError, "JSON serialization failed")
		return
	}
	if PrettyPrint {
		if indented, err := base.JSONMarshalIndent(value, "", "  "); err == nil {
			jsonOut = append(indented, '\n')
		}
	}

	h.setHeader("Content-Type", "application/json")
	if h.rq.Method != "HEAD" {
		h.setHeader("Content-Length", fmt.Sprintf("%d", len(jsonOut)))
		if status > 0 {
			h.response.WriteHeader(status)
			h.setStatus(status, "")
		}
		_, _ = h.response.Write(jsonOut)
	} else if status > 0 {
		h.response.WriteHeader(status)
		h.setStatus(status, "")
	}
}

func (h *handler) writeJSON(value interface{}) {
	h.writeJSONStatus(http.StatusOK, value)
}

// writeError, for a non-nil error, sets the response status code appropriately and
// writes a CouchDB-style JSON description to the body.
func (h *handler) writeError(err error) {
	if err != nil {
		status, message := base.ErrorAsHTTPStatus(err)
		h.writeStatus(status, message)
		if status >= 500 {
			base.Errorf(base.KeyAll, "%s: %v", h.formatSerialNumber(), err)
		}
	}
}

// writeStatus writes the response status code, and if it's an error writes a JSON
// description to the body.
func (h *handler) writeStatus(status int, message string) {
	if status < 300 {
		h.response.WriteHeader(status)
		h.setStatus(status, message)
		return
	}

	// Got an error. Some replication clients dispatch on the error string rather than
	// the numeric status, so it has to be the standard CouchDB name.
	errorStr := base.CouchHTTPErrorName(status)

	h.setHeader("Content-Type", "application/json")
	h.response.WriteHeader(status)
	h.setStatus(status, message)
	jsonOut, _ := base.JSONMarshal(map[string]interface{}{"error": errorStr, "reason": message})
	_, _ = h.response.Write(jsonOut)
}

// formatSerialNumber returns the formatted serial number
func (h *handler) formatSerialNumber() string {
	return fmt.Sprintf("#%03d", h.serialNumber)
}
