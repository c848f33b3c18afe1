package wanagent

import "errors"

// Error kinds from spec.md §7. Construction errors (ConfigError, BindError,
// ConnectError) surface to the caller; FramingError terminates only the
// offending server connection; OrderingViolation is fatal to the SenderCore.
var (
	// ErrBind is returned when the ServerCore fails to bind or listen on
	// its configured address.
	ErrBind = errors.New("wanagent: bind error")

	// ErrConnect is returned when the SenderCore fails to dial a configured
	// peer during construction.
	ErrConnect = errors.New("wanagent: connect error")

	// ErrFraming wraps a short read (including a truncated header) or a
	// failed write on a connection, on the sender or the server side. A
	// server worker that reads an oversize payload size closes its
	// connection without producing this error.
	ErrFraming = errors.New("wanagent: framing error")

	// ErrOversizePayload is returned by Enqueue when the payload exceeds
	// the configured max payload size.
	ErrOversizePayload = errors.New("wanagent: payload exceeds max_payload_size")

	// ErrOrderingViolation indicates an ack arrived out of the expected
	// per-peer sequence — a fatal protocol violation.
	ErrOrderingViolation = errors.New("wanagent: ordering violation")

	// ErrShutdown is returned by SenderCore.Enqueue once shutdown has been
	// signalled. Not a failure condition.
	ErrShutdown = errors.New("wanagent: shut down")
)
