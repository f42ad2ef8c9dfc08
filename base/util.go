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
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FixJSONNumbers walks a JSON-compatible object and converts float64 values to int64
// when they're exactly representable. Go's JSON decoder always produces float64 for
// numbers, and Go's encoder re-serializes large integral float64s using scientific
// notation, which CouchDB-protocol clients reject.
func FixJSONNumbers(value interface{}) interface{} {
	switch value := value.(type) {
	case float64:
		var asInt int64 = int64(value)
		if float64(asInt) == value {
			return asInt
		}
	case map[string]interface{}:
		for k, v := range value {
			value[k] = FixJSONNumbers(v)
		}
	case []interface{}:
		for i, v := range value {
			value[i] = FixJSONNumbers(v)
		}
	default:
	}
	return value
}

func ToInt64(value interface{}) (int64, bool) {
	switch value := value.(type) {
	case int64:
		return value, true
	case float64:
		return int64(value), true
	case int:
		return int64(value), true
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

// RetrySleeper is called back by RetryLoop and passed the current retryCount. It returns
// whether the loop should continue, and if so, how many milliseconds to sleep before the
// next attempt.
type RetrySleeper func(retryCount int) (shouldContinue bool, timeToSleepMs int)

// RetryWorker encapsulates the work being done in a retry loop. shouldRetry determines
// whether the worker will be called again, independent of err.
type RetryWorker func() (shouldRetry bool, err error, value interface{})

// RetryLoop runs worker until it reports it's done, or sleeper says to give up.
func RetryLoop(description string, worker RetryWorker, sleeper RetrySleeper) (error, interface{}) {
	numAttempts := 1

	for {
		shouldRetry, err, value := worker()
		if !shouldRetry {
			if err != nil {
				return err, nil
			}
			return nil, value
		}
		shouldContinue, sleepMs := sleeper(numAttempts)
		if !shouldContinue {
			if err == nil {
				err = fmt.Errorf("RetryLoop for %v giving up after %v attempts", description, numAttempts)
			}
			Warnf(KeyAll, "RetryLoop for %v giving up after %v attempts", description, numAttempts)
			return err, value
		}
		Debugf(KeyAll, "RetryLoop retrying %v after %v ms.", description, sleepMs)

		<-time.After(time.Millisecond * time.Duration(sleepMs))

		numAttempts += 1
	}
}

// CreateDoublingSleeperFunc creates a RetrySleeper that doubles the retry time on every
// iteration, up to maxNumAttempts.
func CreateDoublingSleeperFunc(maxNumAttempts, initialTimeToSleepMs int) RetrySleeper {
	timeToSleepMs := initialTimeToSleepMs

	sleeper := func(numAttempts int) (bool, int) {
		if numAttempts > maxNumAttempts {
			return false, -1
		}
		if numAttempts > 1 {
			timeToSleepMs *= 2
		}
		return true, timeToSleepMs
	}
	return sleeper
}

// SanitizeRequestURL replaces sensitive query string values with ****** before a URL is
// logged. Have to use string replacement instead of writing directly into the Values URL
// object, since only the URL's raw query is mutable.
func SanitizeRequestURL(requestURL *url.URL) string {
	urlString := requestURL.String()
	if strings.Contains(urlString, "code=") || strings.Contains(urlString, "token=") {
		urlString, _ = url.QueryUnescape(urlString)
		values := requestURL.Query()
		for key, vals := range values {
			if key == "code" || strings.Contains(key, "token") {
				for _, val := range vals {
					urlString = strings.Replace(urlString, fmt.Sprintf("%s=%s", key, val), fmt.Sprintf("%s=******", key), -1)
				}
			}
		}
	}
	return urlString
}
