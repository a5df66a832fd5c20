package config

import (
	"errors"
	"fmt"
)

// ErrConfigResolution matches every *ResolutionError.
var ErrConfigResolution = errors.New("config resolution error")

// ResolutionError reports a configuration key that could not be turned into
// a usable value.
type ResolutionError struct {
	Key    string
	Path   string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("config %s: %s: %s", e.Path, e.Key, e.Reason)
}

func (e *ResolutionError) Is(target error) bool { return target == ErrConfigResolution }
