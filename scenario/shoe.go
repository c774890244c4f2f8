package scenario

import "time"

// Resource paths exposed by the shoe firmware.
const (
	Shoelace = "shoe/shoelace"
	LEDColor = "shoe/ledcolor"
	Steps    = "shoe/steps"
	Size     = "shoe/size"
	Name     = "shoe/name"
)

var DefaultTiming = Timing{
	SettleDelay:   2 * time.Second,
	CountInterval: 10 * time.Second,
}

// Timing holds the pauses of the shoe scenario.
type Timing struct {
	// SettleDelay is waited before every PUT and DELETE so the device can settle.
	SettleDelay time.Duration
	// CountInterval separates the two reads of the step counter.
	CountInterval time.Duration
}

// Shoe returns the full shoe check: every resource is read, the writable ones are
// updated and read back, and the resettable ones are deleted and read back.
func Shoe(t Timing) []Step {
	return []Step{
		Get(Shoelace),
		Put(Shoelace, []byte("tie")).After(t.SettleDelay),
		Get(Shoelace),

		Get(LEDColor),
		Put(LEDColor, []byte("123456")).After(t.SettleDelay),
		Get(LEDColor),
		Delete(LEDColor).After(t.SettleDelay),
		Get(LEDColor),

		Get(Steps),
		Get(Steps).After(t.CountInterval),

		Get(Size),

		Get(Name),
		Put(Name, []byte("Judith")).After(t.SettleDelay),
		Get(Name),
		Delete(Name).After(t.SettleDelay),
		Get(Name),
	}
}
