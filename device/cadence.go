package device

import "time"

// Walk advances the step counter by one on every tick until stop is closed,
// emulating someone wearing the shoe.
func (s *Shoe) Walk(stop <-chan struct{}, tick time.Duration) {
	if tick <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.Step(1)
			case <-stop:
				return
			}
		}
	}()
}
