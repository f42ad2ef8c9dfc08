//  Copyright (c) 2012 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package capi

import (
	"fmt"
	"regexp"
	"sort"
)

const (
	// DefaultDocumentType is the index type documents are filed under when no selector
	// rule matches.
	DefaultDocumentType = "couchbaseDocument"

	// DefaultCheckpointDocumentType is the index type reserved for replication
	// checkpoints and bucket UUID documents.
	DefaultCheckpointDocumentType = "couchbaseCheckpoint"
)

// TypeSelector maps (index, document id) to the index type the document is filed under.
// Implementations must be safe for concurrent use and total: they always return a type.
type TypeSelector interface {
	Type(index, docID string) string
}

// TypeSelectorFunc adapts a plain function to the TypeSelector interface.
type TypeSelectorFunc func(index, docID string) string

func (f TypeSelectorFunc) Type(index, docID string) string {
	return f(index, docID)
}

// ConstantTypeSelector files every document under a single type.
type ConstantTypeSelector struct {
	DocType string
}

func (s ConstantTypeSelector) Type(index, docID string) string {
	return s.DocType
}

// RegexTypeSelector files a document under the type of the first rule whose pattern
// matches the document id, falling back to DefaultType. Rules are evaluated in
// lexicographic order of type name so selection is deterministic when patterns overlap.
type RegexTypeSelector struct {
	DefaultType string
	rules       []regexTypeRule
}

type regexTypeRule struct {
	docType string
	pattern *regexp.Regexp
}

// NewRegexTypeSelector compiles the given type -> pattern rules.
func NewRegexTypeSelector(defaultType string, patternsByType map[string]string) (*RegexTypeSelector, error) {
	types := make([]string, 0, len(patternsByType))
	for docType := range patternsByType {
		types = append(types, docType)
	}
	sort.Strings(types)

	selector := &RegexTypeSelector{DefaultType: defaultType}
	for _, docType := range types {
		pattern, err := regexp.Compile(patternsByType[docType])
		if err != nil {
			return nil, fmt.Errorf("invalid document type pattern for %q: %w", docType, err)
		}
		selector.rules = append(selector.rules, regexTypeRule{docType: docType, pattern: pattern})
	}
	return selector, nil
}

func (s *RegexTypeSelector) Type(index, docID string) string {
	for _, rule := range s.rules {
		if rule.pattern.MatchString(docID) {
			return rule.docType
		}
	}
	return s.DefaultType
}
