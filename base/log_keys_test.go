package base

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogKey(t *testing.T) {
	var logKeysPtr *LogKey
	assert.False(t, logKeysPtr.Enabled(KeyHTTP))

	logKeys := KeyHTTP
	assert.True(t, logKeys.Enabled(KeyHTTP))

	// Enable more log keys.
	logKeys.Enable(KeyCRUD | KeyReplicate)
	assert.True(t, logKeys.Enabled(KeyCRUD))
	assert.True(t, logKeys.Enabled(KeyReplicate))
	assert.Equal(t, KeyCRUD|KeyHTTP|KeyReplicate, logKeys)

	// Enable wildcard and check unset key is enabled.
	logKeys.Enable(KeyAll)
	assert.True(t, logKeys.Enabled(KeyIndex))
	assert.Equal(t, KeyAll|KeyCRUD|KeyHTTP|KeyReplicate, logKeys)

	// Disable wildcard and check that existing keys are still set.
	logKeys.Disable(KeyAll)
	assert.True(t, logKeys.Enabled(KeyCRUD))
	assert.False(t, logKeys.Enabled(KeyIndex))
	assert.Equal(t, KeyCRUD|KeyHTTP|KeyReplicate, logKeys)

	// Set KeyNone and check keys are disabled.
	logKeys = KeyNone
	assert.False(t, logKeys.Enabled(KeyAll))
	assert.False(t, logKeys.Enabled(KeyIndex))
	assert.Equal(t, KeyNone, logKeys)
}

func TestLogKeyNames(t *testing.T) {
	name := KeyIndex.String()
	assert.Equal(t, "Index", name)

	// Combined log keys will pretty-print a set of log keys.
	name = LogKey(KeyIndex | KeyReplicate).String()
	assert.Contains(t, name, "Index")
	assert.Contains(t, name, "Replicate")

	keys := []string{}
	logKeys, warnings := ToLogKey(keys)
	assert.Equal(t, 0, len(warnings))
	assert.Equal(t, LogKey(0), logKeys)
	assert.Equal(t, []string{}, logKeys.EnabledLogKeys())

	keys = append(keys, "Index")
	logKeys, warnings = ToLogKey(keys)
	assert.Equal(t, 0, len(warnings))
	assert.Equal(t, KeyIndex, logKeys)
	assert.Equal(t, []string{KeyIndex.String()}, logKeys.EnabledLogKeys())

	keys = append(keys, "CRUD")
	logKeys, warnings = ToLogKey(keys)
	assert.Equal(t, 0, len(warnings))
	assert.Equal(t, KeyCRUD|KeyIndex, logKeys)

	keys = []string{"*", "Index"}
	logKeys, warnings = ToLogKey(keys)
	assert.Equal(t, 0, len(warnings))
	assert.Equal(t, KeyAll|KeyIndex, logKeys)

	// Special handling of the "+" suffix log key.
	keys = []string{"HTTP+"}
	logKeys, warnings = ToLogKey(keys)
	assert.Equal(t, 0, len(warnings))
	assert.Equal(t, KeyHTTP|KeyHTTPResp, logKeys)

	// Invalid log keys are dropped and produce a deferred warning.
	keys = []string{"Index", "NotARealKey"}
	logKeys, warnings = ToLogKey(keys)
	assert.Equal(t, 1, len(warnings))
	assert.Equal(t, KeyIndex, logKeys)
}

func TestConvertSpecialLogKey(t *testing.T) {
	tests := []struct {
		input  string
		output *LogKey
		ok     bool
	}{
		{
			input:  "HTTP",
			output: nil,
			ok:     false,
		},
		{
			input:  "HTTP+",
			output: logKeyPtr(KeyHTTP | KeyHTTPResp),
			ok:     true,
		},
	}

	for _, test := range tests {
		t.Run(test.input, func(ts *testing.T) {
			output, ok := convertSpecialLogKey(test.input)
			assert.Equal(ts, test.ok, ok)
			if ok {
				assert.Equal(ts, *test.output, *output)
			}
		})
	}
}

// This test has no assertions, but will flag any data races when run under `-race`.
func TestLogKeyConcurrency(t *testing.T) {
	var logKey LogKey
	stop := make(chan struct{})

	go func() {
		for {
			select {
			default:
				logKey.Enable(KeyIndex)
			case <-stop:
				return
			}
		}
	}()

	go func() {
		for {
			select {
			default:
				logKey.Disable(KeyIndex)
			case <-stop:
				return
			}
		}
	}()

	go func() {
		for {
			select {
			default:
				logKey.Enabled(KeyIndex)
			case <-stop:
				return
			}
		}
	}()

	time.Sleep(time.Millisecond * 100)
	close(stop)
}

func BenchmarkLogKeyEnabled(b *testing.B) {
	logKeys := KeyCRUD | KeyIndex | KeyReplicate
	benchmarkLogKeyEnabled(b, "Wildcard", KeyConfig, KeyAll)
	benchmarkLogKeyEnabled(b, "Hit", KeyIndex, logKeys)
	benchmarkLogKeyEnabled(b, "Miss", KeyConfig, logKeys)
}

func BenchmarkToggleLogKeys(b *testing.B) {
	b.Run("Enable", func(bn *testing.B) {
		logKeys := KeyCRUD | KeyIndex | KeyReplicate
		for i := 0; i < bn.N; i++ {
			logKeys.Enable(KeyHTTP)
		}
	})
	b.Run("Disable", func(bn *testing.B) {
		logKeys := KeyCRUD | KeyIndex | KeyReplicate
		for i := 0; i < bn.N; i++ {
			logKeys.Disable(KeyIndex)
		}
	})
}

func BenchmarkLogKeyName(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = KeyIndex.String()
	}
}

func BenchmarkToLogKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = ToLogKey([]string{"CRUD", "Index", "Replicate"})
	}
}

func BenchmarkEnabledLogKeys(b *testing.B) {
	logKeys := KeyCRUD | KeyIndex | KeyReplicate
	for i := 0; i < b.N; i++ {
		_ = logKeys.EnabledLogKeys()
	}
}

func benchmarkLogKeyEnabled(b *testing.B, name string, logKey LogKey, logKeys LogKey) {
	b.Run(name, func(bn *testing.B) {
		for i := 0; i < bn.N; i++ {
			logKeys.Enabled(logKey)
		}
	})
}
