package session

import (
	"fmt"
	"time"
)

// ConnectionError indicates the transport failed to open or closed
// unexpectedly. It drives the owning session's reconnection policy.
type ConnectionError struct {
	Op  string
	Err error
}

// Error executes the error method.
func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "connection " + e.Op + " failed"
	}
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

// Unwrap executes the unwrap method.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates a malformed or unrecognized inbound message. It is
// logged and the message discarded; it never tears down the session.
type ProtocolError struct {
	Reason string
	Err    error
}

// Error executes the error method.
func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol error: " + e.Reason
	}
	return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
}

// Unwrap executes the unwrap method.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a pending frame expired without a matching result.
type TimeoutError struct {
	FrameID string
	Age     time.Duration
}

// Error executes the error method.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("frame %s timed out after %s", e.FrameID, e.Age)
}

// CapacityError indicates a queue overflow caused a drop.
type CapacityError struct {
	Dropped int
	Limit   int
}

// Error executes the error method.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("queue overflow: dropped %d entries (limit %d)", e.Dropped, e.Limit)
}

// ConfigError indicates missing required configuration. It is fatal at
// construction and raised synchronously.
type ConfigError struct {
	Field string
}

// Error executes the error method.
func (e *ConfigError) Error() string {
	return "missing required configuration: " + e.Field
}
