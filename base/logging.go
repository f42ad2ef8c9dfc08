//  Copyright (c) 2012-2013 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package base

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/couchbase/clog"
)

const ISO8601Format = "2006-01-02T15:04:05.000Z07:00"

const (
	loggerCollateFlushTimeout             = 1 * time.Second
	fileLoggerCollateFlushTimeout         = 1 * time.Second
	defaultConsoleLoggerCollateBufferSize = 10
	defaultFileLoggerCollateBufferSize    = 1000
)

var (
	consoleLogger                                    *ConsoleLogger
	debugLogger, infoLogger, warnLogger, errorLogger *FileLogger
)

func init() {
	// Initialise a default consoleLogger so we can log during startup before config is parsed.
	// This keeps a consistent format (timestamps, levels) rather than falling back to fmt.Printf.
	consoleLogger = newConsoleLoggerOrPanic(&ConsoleLoggerConfig{})
}

// EnableReplicateLogging enables the "Replicate" key in clog's own key set. The console and
// file loggers in this package do not consult clog keys; their replication output is
// governed by KeyReplicate and the configured log level.
func EnableReplicateLogging() {
	clog.EnableKey("Replicate")
}

func DisableReplicateLogging() {
	clog.DisableKey("Replicate")
}

// GetLogKeys returns the console's currently enabled log keys as a map.
func GetLogKeys() map[string]bool {
	consoleLogKeys := ConsoleLogKey().EnabledLogKeys()
	logKeys := make(map[string]bool, len(consoleLogKeys))
	for _, v := range consoleLogKeys {
		logKeys[v] = true
	}
	return logKeys
}

// UpdateLogKeys updates the console's log keys from a map, as supplied by the admin API.
func UpdateLogKeys(keys map[string]bool, replace bool) {
	if replace {
		*ConsoleLogKey() = KeyNone
	}

	for k, v := range keys {
		key := strings.Replace(k, "+", "", -1)
		logKey, ok := logKeyNamesInverse[key]
		if !ok {
			continue
		}
		if v {
			ConsoleLogKey().Enable(logKey)
		} else {
			ConsoleLogKey().Disable(logKey)
		}
	}

	Infof(KeyAll, "Setting log keys to: %v", ConsoleLogKey().EnabledLogKeys())
}

// GetCallersName returns a string identifying a function on the call stack.
// Use depth=1 for the caller of the function that calls GetCallersName, etc.
func GetCallersName(depth int) string {
	pc, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return "???"
	}

	fnname := ""
	if fn := runtime.FuncForPC(pc); fn != nil {
		fnname = fn.Name()
	}

	return fmt.Sprintf("%s() at %s:%d", lastComponent(fnname), lastComponent(file), line)
}

func lastComponent(path string) string {
	if index := strings.LastIndex(path, "/"); index >= 0 {
		path = path[index+1:]
	} else if index = strings.LastIndex(path, "\\"); index >= 0 {
		path = path[index+1:]
	}
	return path
}

// LoggerWriter adapts the base.Infof API to an io.Writer, so stdlib clients that want a
// Writer (e.g. httputil.DumpRequestOut destinations) can log through this package.
type LoggerWriter struct {
	LogKey       LogKey        // The log key to log to, eg, KeyHTTP
	SerialNumber uint64        // The request ID
	Request      *http.Request // The request
}

func (lw *LoggerWriter) Write(p []byte) (n int, err error) {
	Infof(lw.LogKey, " #%03d: %s %s %s", lw.SerialNumber, lw.Request.Method, SanitizeRequestURL(lw.Request.URL), string(p))
	return len(p), nil
}

func NewLoggerWriter(logKey LogKey, serialNumber uint64, req *http.Request) *LoggerWriter {
	return &LoggerWriter{
		LogKey:       logKey,
		SerialNumber: serialNumber,
		Request:      req,
	}
}

// RotateLogfiles rotates all active log files.
func RotateLogfiles() map[*FileLogger]error {
	Infof(KeyAll, "Rotating log files...")

	loggers := map[*FileLogger]error{
		debugLogger: nil,
		infoLogger:  nil,
		warnLogger:  nil,
		errorLogger: nil,
	}

	for logger := range loggers {
		loggers[logger] = logger.Rotate()
	}

	return loggers
}

// Panicf logs the given formatted string and args at error level and then panics.
func Panicf(logKey LogKey, format string, args ...interface{}) {
	logTo(LevelError, logKey, format, args...)
	panic(fmt.Sprintf(format, args...))
}

// Fatalf logs the given formatted string and args at error level and then exits.
func Fatalf(logKey LogKey, format string, args ...interface{}) {
	logTo(LevelError, logKey, format, args...)
	os.Exit(1)
}

// Errorf logs the given formatted string and args at error level and given log key.
func Errorf(logKey LogKey, format string, args ...interface{}) {
	logTo(LevelError, logKey, format, args...)
}

// Warnf logs the given formatted string and args at warn level and given log key.
func Warnf(logKey LogKey, format string, args ...interface{}) {
	logTo(LevelWarn, logKey, format, args...)
}

// Infof logs the given formatted string and args at info level and given log key.
func Infof(logKey LogKey, format string, args ...interface{}) {
	logTo(LevelInfo, logKey, format, args...)
}

// Debugf logs the given formatted string and args at debug level and given log key.
func Debugf(logKey LogKey, format string, args ...interface{}) {
	logTo(LevelDebug, logKey, format, args...)
}

func logTo(logLevel LogLevel, logKey LogKey, format string, args ...interface{}) {
	shouldLogConsole := consoleLogger.shouldLog(logLevel, logKey)
	shouldLogError := errorLogger.shouldLog(logLevel)
	shouldLogWarn := warnLogger.shouldLog(logLevel)
	shouldLogInfo := infoLogger.shouldLog(logLevel)
	shouldLogDebug := debugLogger.shouldLog(logLevel)

	shouldLog := shouldLogConsole || shouldLogError || shouldLogWarn || shouldLogInfo || shouldLogDebug

	// exit early if we aren't going to log anything
	if !shouldLog || logLevel <= LevelNone {
		return
	}

	format = addPrefixes(format, logLevel, logKey)

	// Warn and error logs also append caller name/line numbers.
	if logLevel <= LevelWarn {
		format += " -- " + GetCallersName(2)
	}

	if shouldLogConsole {
		consoleLogger.logf(color(format, logLevel), args...)
	}

	switch logLevel {
	case LevelError:
		if shouldLogError {
			errorLogger.logf(format, args...)
		}
		fallthrough
	case LevelWarn:
		if shouldLogWarn {
			warnLogger.logf(format, args...)
		}
		fallthrough
	case LevelInfo:
		if shouldLogInfo {
			infoLogger.logf(format, args...)
		}
		fallthrough
	case LevelDebug:
		if shouldLogDebug {
			debugLogger.logf(format, args...)
		}
	}
}

// Broadcastf prints the same log to ALL outputs, ignoring logLevel and logKey settings.
// Useful for app restart/version banners, but MUST be used sparingly.
func Broadcastf(format string, args ...interface{}) {
	format = addPrefixes(format, LevelNone, KeyNone)
	if consoleLogger.logger != nil {
		consoleLogger.logf(color(format, LevelNone), args...)
	}
	if errorLogger.shouldLog(LevelError) {
		errorLogger.logf(format, args...)
	}
	if warnLogger.shouldLog(LevelWarn) {
		warnLogger.logf(format, args...)
	}
	if infoLogger.shouldLog(LevelInfo) {
		infoLogger.logf(format, args...)
	}
	if debugLogger.shouldLog(LevelDebug) {
		debugLogger.logf(format, args...)
	}
}

// addPrefixes modifies the format string to add timestamps, log level, and log key prefixes.
func addPrefixes(format string, logLevel LogLevel, logKey LogKey) string {
	timestampPrefix := time.Now().Format(ISO8601Format) + " "

	var logLevelPrefix string
	if logLevel > LevelNone {
		logLevelPrefix = "[" + logLevel.StringShort() + "] "
	}

	var logKeyPrefix string
	if logKey > KeyNone && logKey != KeyAll {
		logKeyPrefix = LogKeyName(logKey) + ": "
	}

	return timestampPrefix + logLevelPrefix + logKeyPrefix + format
}

// color wraps the given string with ANSI color codes based on logLevel. Doesn't work on Windows.
func color(str string, logLevel LogLevel) string {
	if !colorEnabled() {
		return str
	}

	var color string

	switch logLevel {
	case LevelError:
		color = "\033[1;31m"
	case LevelWarn:
		color = "\033[1;33m"
	case LevelInfo:
		color = "\033[1;34m"
	case LevelDebug:
		color = "\033[0;36m"
	case LevelNone:
		color = "\033[0;32m"
	}

	return color + str + "\033[0m"
}

func colorEnabled() bool {
	return consoleLogger.ColorEnabled &&
		os.Getenv("TERM") != "dumb" &&
		runtime.GOOS != "windows"
}

// ConsoleLogLevel returns the console log level.
func ConsoleLogLevel() *LogLevel {
	return consoleLogger.LogLevel
}

// ConsoleLogKey returns the console log key.
func ConsoleLogKey() *LogKey {
	return consoleLogger.LogKey
}

// LogDebugEnabled returns true if either the console should log at debug level,
// or if the debugLogger is enabled.
func LogDebugEnabled(logKey LogKey) bool {
	return consoleLogger.shouldLog(LevelDebug, logKey) || debugLogger.shouldLog(LevelDebug)
}
