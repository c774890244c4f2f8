package client

import (
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/stretchr/testify/assert"
)

func TestDialConfigTransmission(t *testing.T) {
	cfg := DefaultDialConfig
	cfg.Transmission = Transmission{NStart: 2, AcknowledgeTimeout: 500 * time.Millisecond, MaxRetransmit: 1}
	assert.Contains(t, cfg.udpOptions(), options.WithTransmission(2, 500*time.Millisecond, 1))

	assert.Contains(t, DefaultDialConfig.udpOptions(), options.WithTransmission(1, 2*time.Second, 4))

	cfg.Transmission = Transmission{}
	for _, o := range cfg.udpOptions() {
		_, ok := o.(options.TransmissionOpt)
		assert.False(t, ok)
	}
}
