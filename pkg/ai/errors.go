package ai

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is wrapped in a TransportError when the service answers
// without any text.
var ErrEmptyResponse = errors.New("empty response")

// ConfigError reports a missing credential or setting.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ai: %s is not set", e.Setting)
}

// TransportError reports a failed call to the AI service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
