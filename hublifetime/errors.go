package hublifetime

import "errors"

// Error kinds per the failure-semantics design. InvalidArgument and
// BusUnavailable are returned synchronously to callers; HandlerError and
// WriteError are logged by the manager and never surfaced, since fan-out
// has no single caller to report a per-connection failure to. AckTimeout
// is not an error at all — an ack that times out completes the triggering
// operation successfully.
var (
	// ErrInvalidArgument is returned when a required connection id or
	// group name argument is empty.
	ErrInvalidArgument = errors.New("hublifetime: invalid argument")
	// ErrBusUnavailable is returned when a publish or subscribe fails at
	// the broker boundary, since no local delivery happened to fall back
	// on.
	ErrBusUnavailable = errors.New("hublifetime: bus unavailable")
	// errHandlerFailed names the kind for inbound bus messages that fail to
	// decode or apply. The bus handlers log the underlying error and return;
	// this value is never returned to a caller or attached to the log.
	errHandlerFailed = errors.New("hublifetime: handler failed")
	// errWriteFailed names the kind for a per-connection write failure
	// during fan-out. writeTo logs the underlying error and other recipients
	// still receive their copy; this value is never returned or logged.
	errWriteFailed = errors.New("hublifetime: connection write failed")
)
