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
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Regexes that match the database or doc ID component of a path. These are needed to
// avoid conflict with handlers that match special underscore-prefixed paths like
// "/db/_revs_diff". Matching runs on the still-encoded path (see createCAPIRouter), so a
// Source addressing a vbucket database as "bucket%2F512;uuid" lands in one path variable;
// PathVar decodes it afterwards.
const dbRegex = "[^_/][^/]*"
const docRegex = "[^_/][^/]*"

// createCAPIRouter creates a GorillaMux router containing the HTTP handlers for the CAPI
// replication contract.
func createCAPIRouter(sc *ServerContext) (*mux.Router, *mux.Router) {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.StrictSlash(true)
	// Global operations:
	r.Handle("/", makeHandler(sc, publicPrivs, (*handler).handleRoot)).Methods("GET", "HEAD")

	// Operations on databases:
	r.Handle("/{db:"+dbRegex+"}/", makeHandler(sc, publicPrivs, (*handler).handleGetDB)).Methods("GET", "HEAD")
	r.Handle("/{db:"+dbRegex+"}/", makeHandler(sc, publicPrivs, (*handler).handleCreateDB)).Methods("PUT")
	r.Handle("/{db:"+dbRegex+"}/", makeHandler(sc, publicPrivs, (*handler).handleDeleteDB)).Methods("DELETE")

	// Special database URLs:
	dbr := r.PathPrefix("/{db:" + dbRegex + "}/").Subrouter()
	dbr.StrictSlash(true)
	dbr.Handle("/_revs_diff", makeHandler(sc, publicPrivs, (*handler).handleRevsDiff)).Methods("POST")
	dbr.Handle("/_bulk_docs", makeHandler(sc, publicPrivs, (*handler).handleBulkDocs)).Methods("POST")
	dbr.Handle("/_ensure_full_commit", makeHandler(sc, publicPrivs, (*handler).handleEFC)).Methods("POST")

	// Document URLs:
	dbr.Handle("/_local/{docid}", makeHandler(sc, publicPrivs, (*handler).handleGetLocalDoc)).Methods("GET", "HEAD")
	dbr.Handle("/_local/{docid}", makeHandler(sc, publicPrivs, (*handler).handlePutLocalDoc)).Methods("PUT")

	dbr.Handle("/{docid:"+docRegex+"}", makeHandler(sc, publicPrivs, (*handler).handleGetDoc)).Methods("GET", "HEAD")
	dbr.Handle("/{docid:"+docRegex+"}", makeHandler(sc, publicPrivs, (*handler).handlePutDoc)).Methods("PUT")

	dbr.Handle("/{docid:"+docRegex+"}/{attach}", makeHandler(sc, publicPrivs, (*handler).handleAttachment)).Methods("GET", "HEAD", "PUT")

	return r, dbr
}

// CreatePublicHandler creates the HTTP handler for the public CAPI port the Source
// replicates against.
func CreatePublicHandler(sc *ServerContext) http.Handler {
	r, _ := createCAPIRouter(sc)
	return wrapRouter(sc, publicPrivs, r)
}

//////// ADMIN API:

// CreateAdminHandler creates the HTTP handler for the private admin port.
func CreateAdminHandler(sc *ServerContext) http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(true)

	r.Handle("/_stats",
		makeHandler(sc, adminPrivs, (*handler).handleStats)).Methods("GET")
	r.Handle("/_expvar",
		makeHandler(sc, adminPrivs, (*handler).handleExpvar)).Methods("GET")
	r.Handle("/_logging",
		makeHandler(sc, adminPrivs, (*handler).handleGetLogging)).Methods("GET")
	r.Handle("/_logging",
		makeHandler(sc, adminPrivs, (*handler).handleSetLogging)).Methods("PUT", "POST")
	r.Handle("/metrics",
		promhttp.HandlerFor(sc.registry, promhttp.HandlerOpts{})).Methods("GET")

	return wrapRouter(sc, adminPrivs, r)
}

// wrapRouter returns a top-level HTTP handler for a Router. This adds behavior for URLs
// that don't match anything -- it handles the OPTIONS method as well as returning either
// a 404 or 405 for URLs that don't match a route.
func wrapRouter(sc *ServerContext, privs handlerPrivs, router *mux.Router) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, rq *http.Request) {
		var match mux.RouteMatch
		if router.Match(rq, &match) {
			router.ServeHTTP(response, rq)
			return
		}

		// Log the request
		h := newHandler(sc, privs, response, rq)
		h.logRequestLine()

		// What methods would have matched?
		var options []string
		for _, method := range []string{"GET", "HEAD", "POST", "PUT", "DELETE"} {
			if wouldMatch(router, rq, method) {
				options = append(options, method)
			}
		}
		if len(options) == 0 {
			h.writeStatus(http.StatusNotFound, "unknown URL")
		} else {
			response.Header().Add("Allow", strings.Join(options, ", "))
			if rq.Method != "OPTIONS" {
				h.writeStatus(http.StatusMethodNotAllowed, "")
			} else {
				h.writeStatus(http.StatusNoContent, "")
			}
		}
		h.logDuration(true)
	})
}

func wouldMatch(router *mux.Router, rq *http.Request, method string) bool {
	savedMethod := rq.Method
	rq.Method = method
	defer func() { rq.Method = savedMethod }()
	var matchInfo mux.RouteMatch
	return router.Match(rq, &matchInfo)
}
