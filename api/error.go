package api

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	// KindNetwork means no response reached the service at all.
	KindNetwork Kind = iota + 1
	// KindServer means the service answered with a non-2xx rejection.
	KindServer
)

// CallError is the single failure type the client surfaces for remote calls.
// The Kind keeps network failures distinguishable from server rejections for
// diagnostics; callers that only render a message can use Error directly.
type CallError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *CallError) Error() string {
	if e.Kind == KindNetwork {
		return e.Message
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

func newNetworkError(err error) *CallError {
	return &CallError{Kind: KindNetwork, StatusCode: 0, Message: err.Error()}
}

func newServerError(statusCode int, message string) *CallError {
	return &CallError{Kind: KindServer, StatusCode: statusCode, Message: message}
}

func IsCallError(err error) bool {
	callErr := new(CallError)
	return errors.As(err, &callErr)
}

func IsNetworkError(err error) bool {
	if callErr := new(CallError); errors.As(err, &callErr) {
		return callErr.Kind == KindNetwork
	}
	return false
}

func IsServerError(err error) bool {
	if callErr := new(CallError); errors.As(err, &callErr) {
		return callErr.Kind == KindServer
	}
	return false
}

// Message returns the user-facing message of a call failure, or err.Error for
// anything else that leaks through.
func Message(err error) string {
	if callErr := new(CallError); errors.As(err, &callErr) {
		return callErr.Message
	}
	return err.Error()
}
