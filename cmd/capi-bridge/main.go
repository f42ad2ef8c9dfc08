//  Copyright (c) 2013 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

// capi-bridge is a replication target that speaks the Couchbase CAPI protocol on the
// front and fans mutations into an Elasticsearch-style index engine on the back.
package main

import (
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/rest"
)

func main() {
	rest.ServerMain()
}
