package processor

import (
	"fmt"
)

// ConfigError reports a malformed parameter, a disallowed override of an
// immutable parameter, or an unknown mode string. It is raised before any
// sample is processed.
type ConfigError struct {
	Stage  StageID
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s: %s", e.Stage, e.Param, e.Reason)
}

func configErrorf(stage StageID, param, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Stage: stage, Param: param, Reason: fmt.Sprintf(format, args...)}
}

// DataError reports unreadable, empty or corrupt source audio.
type DataError struct {
	Stage StageID
	Path  string
	Err   error
}

func (e *DataError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("data error in %s (%s): %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("data error in %s: %v", e.Stage, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// NumericError reports a non-finite value that cannot be recovered by
// clamping, such as NaN samples in the source waveform.
type NumericError struct {
	Stage StageID
	Index int
	Value float64
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("numeric error in %s: non-finite value %v at index %d", e.Stage, e.Value, e.Index)
}
