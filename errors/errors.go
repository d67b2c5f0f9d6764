package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrValidation       = fmt.Errorf("invalid payload")
	ErrUnsupportedEvent = fmt.Errorf("unsupported event")
	ErrStore            = fmt.Errorf("message store failure")
	ErrTransport        = fmt.Errorf("transport failure")
	ErrConnectionClosed = fmt.Errorf("connection already closed")
	ErrInvalidRouting   = fmt.Errorf("unknown routing mode")
	ErrInvalidStore     = fmt.Errorf("unknown store driver")
	ErrCorruptedMessage = fmt.Errorf("corrupted message record")
	ErrHandlerPanic     = fmt.Errorf("event handler panic")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
)
