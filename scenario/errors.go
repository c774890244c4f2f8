package scenario

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrUnknownPolicy = Error("unknown failure policy")
	ErrNegativeDelay = Error("negative delay")
	ErrEmptyScenario = Error("scenario has no steps")
)
