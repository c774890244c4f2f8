package device

import "bytes"

// Resource describes one value exposed by the shoe.
type Resource struct {
	Path    string
	Default []byte
	// Capacity is the size of the value buffer, longer payloads are cut to it.
	Capacity int
	// Writable resources accept PUT, the others answer it with 4.05.
	Writable bool
	// Deletable resources reset to Default on DELETE, the others answer it with 4.05.
	Deletable bool
}

// store returns the value a PUT of payload leaves behind. An empty payload
// restores the default.
func (r Resource) store(payload []byte) []byte {
	if len(payload) == 0 {
		return r.Default
	}
	if r.Capacity > 0 && len(payload) > r.Capacity {
		return payload[:r.Capacity]
	}
	return payload
}

// created reports whether a write over current counts as a creation, which is
// the case while the resource still holds its default.
func (r Resource) created(current []byte) bool {
	return bytes.Equal(current, r.Default)
}
