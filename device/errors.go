package device

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrUnknownResource = Error("unknown resource")
)
