package invoke

import (
	"context"
	"fmt"
	"sync"
)

// Loopback is an in-process Invoker that dispatches payloads to registered
// handlers by function name. It lets the remote backend run without a cloud
// account.
type Loopback struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewLoopback creates a loopback serving handler under function
func NewLoopback(function string, handler HandlerFunc) *Loopback {
	l := &Loopback{handlers: make(map[string]HandlerFunc)}
	l.Register(function, handler)
	return l
}

// Register adds or replaces the handler for function
func (l *Loopback) Register(function string, handler HandlerFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[function] = handler
}

// Invoke calls the handler registered for function
func (l *Loopback) Invoke(ctx context.Context, function string, payload []byte) ([]byte, error) {
	handler, err := l.lookup(function)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := handler(ctx, append([]byte(nil), payload...))
	if err != nil {
		return nil, &RemoteError{Message: err.Error()}
	}
	return out, nil
}

// Ping reports whether function has a handler
func (l *Loopback) Ping(ctx context.Context, function string) error {
	_, err := l.lookup(function)
	return err
}

func (l *Loopback) lookup(function string) (HandlerFunc, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	handler, ok := l.handlers[function]
	if !ok {
		return nil, fmt.Errorf("function %q not found", function)
	}
	return handler, nil
}
