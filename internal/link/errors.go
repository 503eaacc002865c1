package link

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConnected is returned when a task operation or send is attempted
	// with no open connection. Operations never connect implicitly.
	ErrNotConnected = errors.New("not connected to desktop")

	// ErrTimeout marks a task that saw no response within its deadline.
	ErrTimeout = errors.New("task timed out")

	// ErrConnClosed completes in-flight tasks whose transport closed underneath
	// them.
	ErrConnClosed = errors.New("connection closed")
)

// AttemptError records the failure of one candidate during Connect.
type AttemptError struct {
	Addr string
	Err  error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Addr, e.Err)
}

func (e AttemptError) Unwrap() error { return e.Err }

// ConnectError aggregates every candidate tried when all of them failed.
type ConnectError struct {
	Attempts []AttemptError
}

func (e *ConnectError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return "connect failed: " + strings.Join(parts, "; ")
}

// SendError wraps a transport write rejection on an otherwise open connection.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send failed: %v", e.Err) }

func (e *SendError) Unwrap() error { return e.Err }

// ProtocolError covers responses that decoded cleanly but were marked not-ok.
type ProtocolError struct {
	TaskID string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("task %s rejected: %s", e.TaskID, e.Reason)
}
