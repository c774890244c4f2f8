package client

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrClosed            = Error("client is closed")
	ErrUnknownMethod     = Error("unknown coap method")
	ErrUnexpectedPayload = Error("payload is allowed only for PUT requests")
	ErrEmptyPath         = Error("empty resource path")
)
