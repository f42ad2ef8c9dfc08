//  Copyright (c) 2012 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package capi

import "strings"

// DatabaseRef identifies the index a Source-supplied database string maps onto, plus the
// bucket UUID the Source expects the target to currently own. An empty UUID means the
// Source didn't supply one and no verification should happen.
type DatabaseRef struct {
	IndexName string
	UUID      string
}

// ParseDatabaseRef splits a database string of the form <name>[/<suffix>][;<uuid>].
// The suffix after the first "/" is a Source-side vbucket routing hint and is dropped.
func ParseDatabaseRef(database string) DatabaseRef {
	ref := DatabaseRef{IndexName: database}
	if i := strings.IndexByte(ref.IndexName, ';'); i >= 0 {
		ref.UUID = ref.IndexName[i+1:]
		ref.IndexName = ref.IndexName[:i]
	}
	if i := strings.IndexByte(ref.IndexName, '/'); i >= 0 {
		ref.IndexName = ref.IndexName[:i]
	}
	return ref
}

// DatabaseNameWithoutUUID strips the ";<uuid>" suffix, if any, leaving the name and any
// vbucket hint intact. This is the db_name the Source expects echoed back in details.
func DatabaseNameWithoutUUID(database string) string {
	if i := strings.IndexByte(database, ';'); i >= 0 {
		return database[:i]
	}
	return database
}
