// Package invoke is the remote invocation substrate: an Invoker calls a named
// function with a payload, and the codec and Handler define what a work unit
// looks like on the wire.
package invoke

import (
	"context"
	"errors"
	"fmt"
)

// DefaultFunctionName is the remote function used when none is configured
const DefaultFunctionName = "LambdaMapFunction"

// Invoker performs one synchronous invocation. Errors that are worth
// retrying are returned as *util.TransientError; anything else is final.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload []byte) ([]byte, error)
}

// Pinger is implemented by invokers that can check a function exists before
// a batch is submitted.
type Pinger interface {
	Ping(ctx context.Context, function string) error
}

// ErrRemote marks a failure reported by the remote function itself
var ErrRemote = errors.New("remote function error")

// RemoteError carries a failure reported by the remote side
type RemoteError struct {
	Message string
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRemote, e.Message)
}

// Is matches ErrRemote
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
