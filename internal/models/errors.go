package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for version and upgrader declarations.
var (
	ErrFormat        = errors.New("malformed version")
	ErrConfiguration = errors.New("invalid upgrader configuration")
)

// Sentinel errors raised while migrating a single asset.
var (
	ErrParse                    = errors.New("malformed asset document")
	ErrUnknownAssetType         = errors.New("unknown asset type")
	ErrUnsupportedFutureVersion = errors.New("asset was serialized by a newer version")
	ErrNoUpgraderPath           = errors.New("no upgraders registered")
	ErrUpgraderNotFound         = errors.New("no upgrader covers version")
	ErrIncompleteMigration      = errors.New("migration did not reach expected version")
)

// kinds maps sentinels to the short labels used by metrics and CLI output.
var kinds = []struct {
	err  error
	kind string
}{
	{ErrFormat, "format"},
	{ErrConfiguration, "configuration"},
	{ErrParse, "parse"},
	{ErrUnknownAssetType, "unknown_type"},
	{ErrUnsupportedFutureVersion, "future_version"},
	{ErrNoUpgraderPath, "no_upgrader_path"},
	{ErrUpgraderNotFound, "upgrader_not_found"},
	{ErrIncompleteMigration, "incomplete"},
}

// ErrorKind returns a short label for err, "internal" for errors outside the
// taxonomy and "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return "internal"
}

// ErrParseAt returns an ErrParse annotated with a source line.
func ErrParseAt(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrParse, line, fmt.Sprintf(format, args...))
}
