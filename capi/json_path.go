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

// ResolvePath resolves a dotted path like "doc.user.id" through a nested JSON mapping,
// descending one segment at a time. It returns nil if any intermediate node is not a
// mapping or a segment is missing. An empty trailing segment ("doc.user.") returns the
// parent node's current child. Non-string terminals are returned as-is; callers that need
// a string (parent/routing extraction) must check the type themselves.
func ResolvePath(json map[string]interface{}, path string) interface{} {
	dot := strings.IndexByte(path, '.')
	if dot < 0 {
		return json[path]
	}

	current := json[path[:dot]]
	rest := path[dot+1:]
	if rest == "" {
		return current
	}
	if currentMap, ok := current.(map[string]interface{}); ok {
		return ResolvePath(currentMap, rest)
	}
	return nil
}
