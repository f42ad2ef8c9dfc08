//  Copyright (c) 2012 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package base

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError wraps an HTTP response status, the shape every CAPI error response carries.
type HTTPError struct {
	Status  int
	Message string
}

func (err *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", err.Status, err.Message)
}

func HTTPErrorf(status int, format string, args ...interface{}) *HTTPError {
	return &HTTPError{status, fmt.Sprintf(format, args...)}
}

// IndexError is returned by an IndexClient when the Index rejected an operation outright
// rather than via a per-item bulk failure.
type IndexError struct {
	Op      string
	Message string
}

func (err *IndexError) Error() string {
	return fmt.Sprintf("index %s failed: %s", err.Op, err.Message)
}

// ErrorAsHTTPStatus maps an error to an HTTP status code and message.
// Defaults to 500 if it doesn't recognize the error. Returns 200 for a nil error.
func ErrorAsHTTPStatus(err error) (int, string) {
	if err == nil {
		return 200, "OK"
	}
	switch err := err.(type) {
	case *HTTPError:
		return err.Status, err.Message
	case *IndexError:
		return http.StatusBadGateway, err.Message
	case *json.SyntaxError, *json.UnmarshalTypeError:
		return http.StatusBadRequest, fmt.Sprintf("Invalid JSON: \"%v\"", err)
	}
	return http.StatusInternalServerError, fmt.Sprintf("Internal error: %v", err)
}

// CouchHTTPErrorName returns the standard CouchDB error string for an HTTP error status.
// These matter for compatibility: some replication clients only look at this string, not
// the numeric status.
func CouchHTTPErrorName(status int) string {
	switch status {
	case 400:
		return "bad_request"
	case 401:
		return "unauthorized"
	case 404:
		return "not_found"
	case 403:
		return "forbidden"
	case 406:
		return "not_acceptable"
	case 409:
		return "conflict"
	case 412:
		return "file_exists"
	case 415:
		return "bad_content_type"
	case 501:
		return "not_implemented"
	case 503:
		return "too_many_requests"
	}
	return fmt.Sprintf("%d", status)
}

// IsDocNotFoundError returns true if an error represents a missing document.
func IsDocNotFoundError(err error) bool {
	if httpErr, ok := err.(*HTTPError); ok {
		return httpErr.Status == http.StatusNotFound
	}
	return false
}
