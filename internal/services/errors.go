package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInput marks unusable subtitle input: missing file, undecodable
	// text, or an empty cue set. Fatal before generation starts.
	ErrInput = errors.New("input error")
	// ErrNetwork marks a speech backend failure that survived the retry
	// budget. Recorded per cue, never fatal to the run.
	ErrNetwork = errors.New("network error")
	// ErrStretch marks a time-stretch failure, including raw clips that
	// cannot be decoded. Degrades to a fallback clip or silence.
	ErrStretch = errors.New("stretch error")
	// ErrIO marks file-system failures around the cache and work directory.
	ErrIO = errors.New("io error")
	// ErrExternalTool marks missing or failing external binaries.
	ErrExternalTool = errors.New("external tool error")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error should abort the run rather than degrade
// to a per-cue fallback.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInput) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrValidation)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
