package reputation

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is matched by every InvalidConfigurationError.
var ErrInvalidConfiguration = errors.New("reputation: invalid configuration")

// InvalidConfigurationError reports a contract violation by the caller: a broken
// source table or a malformed signal (an out-of-range rating or a negative review
// count). Missing or zero data is never reported this way.
type InvalidConfigurationError struct {
	Source SourceID
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("reputation: invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("reputation: invalid configuration for source %q: %s", e.Source, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidConfiguration) match.
func (e *InvalidConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func invalidf(source SourceID, format string, args ...interface{}) error {
	return &InvalidConfigurationError{Source: source, Reason: fmt.Sprintf(format, args...)}
}
