//  Copyright 2018-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package base

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

// jsonIter is configured to match encoding/json's default behavior, but with jsoniter's
// faster reflection-based codec. Every JSON encode/decode in this module should go through
// these helpers rather than encoding/json directly, so that the fast path stays consistent.
var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

func JSONMarshal(v interface{}) ([]byte, error) {
	return jsonIter.Marshal(v)
}

func JSONMarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return jsonIter.MarshalIndent(v, prefix, indent)
}

func JSONUnmarshal(data []byte, v interface{}) error {
	return jsonIter.Unmarshal(data, v)
}

func JSONDecoder(r io.Reader) *jsoniter.Decoder {
	return jsonIter.NewDecoder(r)
}
