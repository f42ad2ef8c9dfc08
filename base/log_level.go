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
	"errors"
	"fmt"
	"sync/atomic"
)

// LogLevel represents a log verbosity level.
type LogLevel uint32

const (
	// LevelNone disables all logging.
	LevelNone LogLevel = iota
	// LevelError enables only error logging.
	LevelError
	// LevelWarn enables warn and error logging.
	LevelWarn
	// LevelInfo enables info, warn, and error logging.
	LevelInfo
	// LevelDebug enables all logging.
	LevelDebug
)

var logLevelNames = []string{"none", "error", "warn", "info", "debug"}

var logLevelNamesShort = []string{"NON", "ERR", "WRN", "INF", "DBG"}

// levelCount is the highest valid LogLevel value, used to bounds-check config input.
const levelCount = LevelDebug

// StringShort returns a fixed-width three-letter representation of the log level, used as a
// line prefix.
func (l LogLevel) StringShort() string {
	if int(l) >= len(logLevelNamesShort) {
		return "???"
	}
	return logLevelNamesShort[l]
}

func (l *LogLevel) Set(newLevel LogLevel) {
	atomic.StoreUint32((*uint32)(l), uint32(newLevel))
}

// Enabled returns true if the given log level is enabled.
func (l *LogLevel) Enabled(logLevel LogLevel) bool {
	if l == nil {
		return false
	}
	return atomic.LoadUint32((*uint32)(l)) >= uint32(logLevel)
}

// LogLevelName returns the string representation of a log level.
func LogLevelName(logLevel LogLevel) string {
	return logLevelNames[logLevel]
}

func (l LogLevel) String() string {
	if int(l) >= len(logLevelNames) {
		return "???"
	}
	return LogLevelName(l)
}

func (l *LogLevel) MarshalText() (text []byte, err error) {
	if l == nil {
		return nil, errors.New("invalid log level")
	}
	return []byte(LogLevelName(*l)), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	for i, name := range logLevelNames {
		if name == string(text) {
			*l = LogLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unrecognized log level: %q (valid options: %v)", string(text), logLevelNames)
}
