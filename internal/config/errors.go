package config

import "fmt"

// ConfigurationError reports an invalid or physically nonsensical parameter.
// It always carries the parameter name and the offending value.
type ConfigurationError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Param, e.Value, e.Reason)
}
