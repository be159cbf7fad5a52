package gateway

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Transport error taxonomy. Callers branch with errors.Is; the concrete cause
// stays wrapped underneath.
var (
	// ErrConnection: the gateway was unreachable (refused, reset, no route).
	ErrConnection = errors.New("gateway unreachable")
	// ErrTimeout: no response within the configured budget.
	ErrTimeout = errors.New("gateway request timed out")
	// ErrProtocol: the gateway answered, but not with the expected document.
	ErrProtocol = errors.New("gateway response malformed")
	// ErrRejected: the gateway was reached and explicitly refused a command.
	// Not safe to retry automatically.
	ErrRejected = errors.New("gateway rejected command")
)

// classifyTransportErr maps an http.Client error to ErrTimeout or ErrConnection.
func classifyTransportErr(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return ErrTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrConnection
}
