package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeAmbientSink struct {
	values []float64
}

func (s *fakeAmbientSink) OnAmbientUpdate(celsius float64) {
	s.values = append(s.values, celsius)
}

func TestHandleMessageDecodesAmbientReading(t *testing.T) {
	sink := &fakeAmbientSink{}
	subscriber := NewAmbientMQTT(sink, "tcp://localhost:1883", "thermactl/ambient", "test")

	subscriber.handleMessage(nil, &fakeMessage{
		topic:   "thermactl/ambient",
		payload: []byte(`{"sensorId":"room-1","temperatureC":23.4}`),
	})

	require.Len(t, sink.values, 1)
	assert.InDelta(t, 23.4, sink.values[0], 0.0001)
}

func TestHandleMessageDiscardsUndecodablePayload(t *testing.T) {
	sink := &fakeAmbientSink{}
	subscriber := NewAmbientMQTT(sink, "tcp://localhost:1883", "thermactl/ambient", "test")

	subscriber.handleMessage(nil, &fakeMessage{
		topic:   "thermactl/ambient",
		payload: []byte("not json"),
	})

	assert.Empty(t, sink.values, "broken payloads never reach the sink")
}
