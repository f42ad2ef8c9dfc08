/*
Copyright 2017-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package base

import "fmt"

const (
	ProductName = "Elasticsearch Transport Couchbase"

	ProductAPIVersionMajor = "1"
	ProductAPIVersionMinor = "0"
	ProductAPIVersion      = ProductAPIVersionMajor + "." + ProductAPIVersionMinor
)

// GitCommit is substituted by the build at link time via -ldflags, and left as "unknown"
// for dev builds.
var GitCommit = "unknown"

// VersionString appears in the "Server:" header of HTTP responses. CouchDB-protocol
// clients parse this header to detect which server dialect they're talking to.
var VersionString = fmt.Sprintf("%s/%s", ProductName, ProductAPIVersion)

// LongVersionString includes the commit hash; it appears in the initial startup log line.
var LongVersionString = fmt.Sprintf("%s(%.7s)", VersionString, GitCommit)
