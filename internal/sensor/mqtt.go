package sensor

import (
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okkern/thermactl/internal/errors"
	"github.com/okkern/thermactl/internal/logger"
)

const mqttConnectTimeout = 10 * time.Second

// ambientReading is the JSON payload published by external room sensors
type ambientReading struct {
	SensorID     string    `json:"sensorId"`
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperatureC"`
}

// AmbientMQTT subscribes to an external temperature feed and pushes
// readings into the sink
type AmbientMQTT struct {
	sink     AmbientSink
	broker   string
	topic    string
	clientID string

	mu      sync.Mutex
	client  mqtt.Client
	running bool
}

func NewAmbientMQTT(sink AmbientSink, broker, topic, clientID string) *AmbientMQTT {
	return &AmbientMQTT{
		sink:     sink,
		broker:   broker,
		topic:    topic,
		clientID: clientID,
	}
}

// Start connects to the broker and subscribes. The subscription is placed
// in the connect handler so reconnects subscribe again on their own.
func (a *AmbientMQTT) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(a.broker).
		SetClientID(a.clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOnConnectHandler(a.subscribe)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return errFactory.Wrap(errors.ErrSensorInit, token.Error())
	}

	a.client = client
	a.running = true

	return nil
}

// Stop disconnects from the broker. Safe to call more than once.
func (a *AmbientMQTT) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	a.client.Disconnect(250)
}

func (a *AmbientMQTT) subscribe(client mqtt.Client) {
	if token := client.Subscribe(a.topic, 0, a.handleMessage); token.Wait() && token.Error() != nil {
		logger.Error().
			Err(token.Error()).
			Str("topic", a.topic).
			Msg("Ambient temperature subscription failed")
		return
	}

	logger.Info().
		Str("broker", a.broker).
		Str("topic", a.topic).
		Msg("Subscribed to ambient temperature feed")
}

func (a *AmbientMQTT) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var reading ambientReading
	if err := json.Unmarshal(msg.Payload(), &reading); err != nil {
		logger.Debug().
			Err(err).
			Str("topic", msg.Topic()).
			Msg("Discarding undecodable ambient reading")
		return
	}

	a.sink.OnAmbientUpdate(reading.TemperatureC)
}
