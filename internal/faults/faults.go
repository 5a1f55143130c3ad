// Package faults defines the two fatal error classes of the trading
// runtime: configuration/policy violations and upstream publisher
// failures. Both are terminal for the current run.
package faults

import (
	"errors"
	"fmt"
)

// ConfigError marks bad or missing configuration and policy failures.
// Never retried.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string { return e.Msg }
func (e *ConfigError) Unwrap() error { return e.Err }

// PublisherError marks a transport, HTTP or JSON-RPC level failure
// from an external call routed through the gateway.
type PublisherError struct {
	Msg string
	Err error
}

func (e *PublisherError) Error() string { return e.Msg }
func (e *PublisherError) Unwrap() error { return e.Err }

func Configf(format string, a ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, a...)}
}

func ConfigWrap(err error, format string, a ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, a...), Err: err}
}

func Publisherf(format string, a ...any) error {
	return &PublisherError{Msg: fmt.Sprintf(format, a...)}
}

func PublisherWrap(err error, format string, a ...any) error {
	return &PublisherError{Msg: fmt.Sprintf(format, a...), Err: err}
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsPublisher(err error) bool {
	var pe *PublisherError
	return errors.As(err, &pe)
}
