//  Copyright 2018-Present Couchbase, Inc.
//
//  Use of this software is governed by the Business Source License included
//  in the file licenses/BSL-Couchbase.txt.  As of the Change Date specified
//  in that file, in accordance with the Business Source License, use of this
//  software will be governed by the Apache License, Version 2.0, included in
//  the file licenses/APL2.txt.

package base

import (
	"strings"
	"sync/atomic"
)

// LogKey is a bitfield of log keys, matching the set-of-independent-categories idiom used
// throughout this package so a single log line can be filtered by category rather than level
// alone.
type LogKey uint32

// Values for log keys.
const (
	// KeyNone is shorthand for no log keys.
	KeyNone LogKey = 0

	// KeyAll is a wildcard for all log keys.
	KeyAll LogKey = 1 << iota

	KeyConfig
	KeyCRUD
	KeyHTTP
	KeyHTTPResp // Include status/timing lines of successful HTTP responses in logs.
	KeyIndex
	KeyReplicate
)

var (
	logKeyNames = map[LogKey]string{
		KeyAll:       "*",
		KeyConfig:    "Config",
		KeyCRUD:      "CRUD",
		KeyHTTP:      "HTTP",
		KeyHTTPResp:  "HTTP+",
		KeyIndex:     "Index",
		KeyReplicate: "Replicate",
	}

	// Inverse of the map above. Optimisation for string -> LogKey lookups in ToLogKey.
	logKeyNamesInverse = inverseLogKeyNames(logKeyNames)
)

// Enable will enable the given logKey in keyMask.
func (keyMask *LogKey) Enable(logKey LogKey) {
	val := atomic.LoadUint32((*uint32)(keyMask))
	atomic.StoreUint32((*uint32)(keyMask), val|uint32(logKey))
}

// Disable will disable the given logKey in keyMask.
func (keyMask *LogKey) Disable(logKey LogKey) {
	val := atomic.LoadUint32((*uint32)(keyMask))
	atomic.StoreUint32((*uint32)(keyMask), val & ^uint32(logKey))
}

// Enabled returns true if the given logKey, or KeyAll, is enabled in keyMask.
func (keyMask *LogKey) Enabled(logKey LogKey) bool {
	if keyMask == nil {
		return false
	}
	return keyMask.enabled(logKey, true)
}

// enabled returns true if the given logKey is enabled in keyMask, with an optional wildcard check.
func (keyMask *LogKey) enabled(logKey LogKey, checkWildcard bool) bool {
	flag := atomic.LoadUint32((*uint32)(keyMask))
	return (checkWildcard && flag&uint32(KeyAll) != 0) ||
		flag&uint32(logKey) != 0
}

// String returns a human-readable representation of one or more log keys combined in a mask.
func (keyMask LogKey) String() string {
	if keyMask == KeyNone {
		return "None"
	}
	return strings.Join(keyMask.EnabledLogKeys(), ", ")
}

// EnabledLogKeys returns a slice of enabled log key names.
func (keyMask LogKey) EnabledLogKeys() []string {
	var logKeys = make([]string, 0, len(logKeyNames))
	for i := 0; i < 32; i++ {
		logKey := LogKey(1) << uint32(i)
		if name, ok := logKeyNames[logKey]; ok && keyMask.enabled(logKey, false) {
			logKeys = append(logKeys, name)
		}
	}
	return logKeys
}

// LogKeyName returns the name of the given log key, or an empty string for an unknown key.
func LogKeyName(logKey LogKey) string {
	return logKeyNames[logKey]
}

// DeferredLogFn defers a log call until after the logging subsystem is fully initialized.
// Used to surface warnings encountered while parsing config-supplied log keys, since the
// logger itself may not be ready yet at that point in startup.
type DeferredLogFn func()

// ToLogKey takes a slice of case-sensitive log key names and returns a LogKey bitfield, plus
// deferred warnings for any names that weren't recognized.
func ToLogKey(keysStr []string) (logKeys LogKey, warns []DeferredLogFn) {
	for _, name := range keysStr {
		if special, ok := convertSpecialLogKey(name); ok {
			logKeys.Enable(*special)
			continue
		}
		if logKey, ok := logKeyNamesInverse[name]; ok {
			logKeys.Enable(logKey)
			continue
		}
		nameCopy := name
		warns = append(warns, func() {
			Warnf(KeyAll, "Unrecognized log key: %q", nameCopy)
		})
	}
	return logKeys, warns
}

// convertSpecialLogKey handles log key names with a "+" suffix, which enable an additional,
// more verbose log key alongside the base one. "HTTP+" enables status/timing lines for
// successful HTTP responses in addition to basic request logging.
func convertSpecialLogKey(name string) (*LogKey, bool) {
	switch name {
	case "HTTP+":
		key := KeyHTTP | KeyHTTPResp
		return &key, true
	}
	return nil, false
}

func logKeyPtr(k LogKey) *LogKey {
	return &k
}

func inverseLogKeyNames(in map[LogKey]string) map[string]LogKey {
	var out = make(map[string]LogKey, len(in))
	for k, v := range in {
		out[v] = k
	}
	return out
}
