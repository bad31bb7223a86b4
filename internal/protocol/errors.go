package protocol

import "errors"

var (
	// ErrTransport marks dial, send, and receive failures, including short reads.
	ErrTransport = errors.New("protocol: transport failure")
	ErrShortAck  = errors.New("protocol: short acknowledgement")
	// ErrProtocolViolation marks a well-formed read carrying an unexpected value.
	ErrProtocolViolation = errors.New("protocol: protocol violation")
	ErrPollTimeout       = errors.New("protocol: poll attempts exhausted")
)
