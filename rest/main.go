//  Copyright (c) 2013 Couchbase, Inc.
//  Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
//  except in compliance with the License. You may obtain a copy of the License at
//    http://www.apache.org/licenses/LICENSE-2.0
//  Unless required by applicable law or agreed to in writing, software distributed under the
//  License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
//  either express or implied. See the License for the specific language governing permissions
//  and limitations under the License.

package rest

import (
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/stuckdownawell/elasticsearch-transport-couchbase/base"
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/capi"
	"github.com/stuckdownawell/elasticsearch-transport-couchbase/indexclient"
)

// ServerMain is the main entry point of launching the bridge; it parses the command line,
// reads the config file, and starts the listeners. It blocks for the life of the process.
func ServerMain() {
	config, err := ParseCommandLine(os.Args[1:])
	if err != nil {
		base.Fatalf(base.KeyAll, "Error reading configuration: %v", err)
	}
	RunServer(config, indexclient.New(config.Index.URL))
}

// ParseCommandLine builds the effective StartupConfig: defaults, overlaid with the config
// file named by -configfile (if any), overlaid with the other command-line flags.
func ParseCommandLine(args []string) (*StartupConfig, error) {
	flags := flag.NewFlagSet("capi-bridge", flag.ExitOnError)
	configPath := flags.String("configfile", "", "Path to a JSON configuration file")
	publicInterface := flags.String("interface", "", "Address to bind the CAPI listener to")
	adminInterface := flags.String("adminInterface", "", "Address to bind the admin listener to")
	indexURL := flags.String("url", "", "URL of the index engine")
	logKeys := flags.String("log", "", "Comma-separated list of log keys to enable")
	verbose := flags.Bool("verbose", false, "Log at debug level")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	config := DefaultStartupConfig()
	if *configPath != "" {
		fileConfig, err := LoadStartupConfigFromPath(*configPath)
		if err != nil {
			return nil, err
		}
		if err := config.Merge(fileConfig); err != nil {
			return nil, err
		}
	}

	overrides := StartupConfig{
		Interface:      *publicInterface,
		AdminInterface: *adminInterface,
		Index:          IndexClientConfig{URL: *indexURL},
	}
	if err := config.Merge(&overrides); err != nil {
		return nil, err
	}

	applyLogging(&config, *verbose, *logKeys)
	return &config, nil
}

func applyLogging(config *StartupConfig, verbose bool, logKeys string) {
	if config.Logging.Console.LogLevel != nil {
		base.ConsoleLogLevel().Set(*config.Logging.Console.LogLevel)
	}
	if verbose {
		base.ConsoleLogLevel().Set(base.LevelDebug)
	}

	enabled := make(map[string]bool)
	for _, key := range config.Logging.Console.LogKeys {
		enabled[key] = true
	}
	if logKeys != "" {
		for _, key := range strings.Split(logKeys, ",") {
			enabled[strings.TrimSpace(key)] = true
		}
	}
	if len(enabled) > 0 {
		base.UpdateLogKeys(enabled, false)
	}
}

// RunServer starts the admin and public listeners and blocks serving CAPI requests.
func RunServer(config *StartupConfig, client capi.IndexClient) {
	sc, err := NewServerContext(config, client)
	if err != nil {
		base.Fatalf(base.KeyAll, "Error creating server context: %v", err)
	}

	base.Broadcastf("==== %s ====", base.LongVersionString)
	base.Broadcastf("Index engine at %s", config.Index.URL)

	waitForIndexEngine(client)

	go func() {
		base.Infof(base.KeyAll, "Starting admin server on %s", config.AdminInterface)
		serveHTTP(config.AdminInterface, CreateAdminHandler(sc))
	}()

	base.Infof(base.KeyAll, "Starting server on %s ...", config.Interface)
	serveHTTP(config.Interface, CreatePublicHandler(sc))
}

// waitForIndexEngine blocks until the index engine answers HTTP, so a bridge started
// alongside the engine doesn't greet the Source with spurious failures. The probe only
// cares about transport success; whether the probed index exists is irrelevant.
func waitForIndexEngine(client capi.IndexClient) {
	worker := func() (bool, error, interface{}) {
		_, err := client.IndexExists("startup-probe")
		if err != nil {
			base.Infof(base.KeyAll, "Index engine not reachable yet: %v", err)
			return true, err, nil
		}
		return false, nil, nil
	}
	if err, _ := base.RetryLoop("index engine connectivity", worker, base.CreateDoublingSleeperFunc(8, 250)); err != nil {
		base.Fatalf(base.KeyAll, "Giving up waiting for the index engine: %v", err)
	}
}

func serveHTTP(addr string, handler http.Handler) {
	if err := http.ListenAndServe(addr, handler); err != nil {
		base.Fatalf(base.KeyAll, "Failed to start HTTP server on %s: %v", addr, err)
	}
}
