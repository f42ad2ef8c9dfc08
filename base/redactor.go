package base

import (
	"fmt"

	"github.com/couchbase/clog"
)

// RedactUserData is a global toggle for user data redaction in log output.
var RedactUserData = false

// RedactMetadata is a global toggle for metadata redaction in log output.
var RedactMetadata = false

// Redactor is a value that can render itself in redacted form for logging.
type Redactor interface {
	Redact() string
}

// UserData wraps values the application user wrote into the Source: document ids, document
// field values, and revision payloads. When redaction is enabled these are tagged so
// support tooling can strip them from collected logs.
type UserData string

func (ud UserData) Redact() string {
	if !RedactUserData {
		return string(ud)
	}
	return clog.Tag(clog.UserData, string(ud)).(string)
}

// String returns the redacted form, so UserData values can be passed directly as %s/%q
// format args.
func (ud UserData) String() string {
	return ud.Redact()
}

// Metadata wraps infrastructure names: bucket names, index names, type names.
type Metadata string

func (md Metadata) Redact() string {
	if !RedactMetadata {
		return string(md)
	}
	return clog.Tag(clog.MetaData, string(md)).(string)
}

func (md Metadata) String() string {
	return md.Redact()
}

// Compile-time interface checks.
var (
	_ Redactor = UserData("")
	_ Redactor = Metadata("")
)

// UD wraps a value as UserData for logging.
func UD(i interface{}) UserData {
	return UserData(stringify(i))
}

// MD wraps a value as Metadata for logging.
func MD(i interface{}) Metadata {
	return Metadata(stringify(i))
}

func stringify(i interface{}) string {
	switch v := i.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%+v", v)
	}
}
