package service

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrDecode      = errors.New("invalid message format")
	ErrUnknownType = errors.New("unknown message type")

	ErrCreate = errors.New("unable to create room")
	ErrJoin   = errors.New("unable to join room")
)

const (
	msgInvalidFormat = "Invalid message format"
	msgUnknownType   = "Unknown message type"
	msgRoomNotFound  = "Room not found"
)

// clientError is reported back to the sender as an error message.
// Its kind is one of the sentinel errors above.
type clientError struct {
	kind error
	msg  string
}

func newClientError(kind error, msg string) *clientError {
	return &clientError{kind: kind, msg: msg}
}

func (e *clientError) Error() string {
	return e.msg
}

func (e *clientError) Unwrap() error {
	return e.kind
}
