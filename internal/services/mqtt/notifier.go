// Package mqtt publishes pattern run status to an MQTT broker and accepts stop commands.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bbernstein/lacylights-bulbs/internal/services/playback"
)

const (
	publishTimeout        = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	qosAtLeastOnce        = 1
)

// ErrConnectTimeout is returned by Connect when the broker has not answered in time.
// The client keeps retrying in the background.
var ErrConnectTimeout = errors.New("mqtt: connect timed out")

// Config holds broker connection settings.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
}

// client is the subset of the paho client the notifier uses.
type client interface {
	Connect() paho.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// Notifier mirrors run status to retained topics at {prefix}/{deviceID}/pattern
// and listens on {prefix}/{deviceID}/pattern/stop.
type Notifier struct {
	client         client
	broker         string
	prefix         string
	onStop         func(deviceID string) bool
	connectTimeout time.Duration
}

// NewNotifier creates a notifier with automatic reconnects. onStop is called
// for stop commands and may be nil.
func NewNotifier(cfg Config, onStop func(deviceID string) bool) *Notifier {
	n := &Notifier{
		broker:         cfg.Broker,
		prefix:         strings.TrimSuffix(cfg.TopicPrefix, "/"),
		onStop:         onStop,
		connectTimeout: defaultConnectTimeout,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(n.availabilityTopic(), "offline", qosAtLeastOnce, true)

	opts.SetOnConnectHandler(func(paho.Client) {
		log.Println("[MQTT] Connected to broker")
		n.subscribe()
		n.publish(n.availabilityTopic(), "online")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v, retrying in background", err)
	})

	n.client = paho.NewClient(opts)
	return n
}

func newNotifierWithClient(c client, prefix string, onStop func(deviceID string) bool) *Notifier {
	return &Notifier{
		client:         c,
		prefix:         strings.TrimSuffix(prefix, "/"),
		onStop:         onStop,
		connectTimeout: defaultConnectTimeout,
	}
}

// Connect starts the connection loop and waits up to the connect timeout for
// the broker. With connect retry enabled the token only completes once the
// broker is reachable, so a timeout leaves the client retrying in the background.
func (n *Notifier) Connect() error {
	log.Printf("[MQTT] Connecting to %s", n.broker)
	token := n.client.Connect()
	if !token.WaitTimeout(n.connectTimeout) {
		return fmt.Errorf("%w after %v", ErrConnectTimeout, n.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// PublishRunStatus publishes the status as retained JSON on the device's pattern topic.
func (n *Notifier) PublishRunStatus(status *playback.RunStatus) {
	if status == nil {
		return
	}
	payload, err := json.Marshal(status)
	if err != nil {
		log.Printf("[MQTT] Failed to encode run status %s: %v", status.RunID, err)
		return
	}
	n.publish(n.patternTopic(status.DeviceID), payload)
}

// Disconnect publishes the offline marker and closes the connection.
func (n *Notifier) Disconnect() {
	if !n.client.IsConnected() {
		return
	}
	token := n.client.Publish(n.availabilityTopic(), qosAtLeastOnce, true, "offline")
	if !token.WaitTimeout(2 * time.Second) {
		log.Println("[MQTT] Warning: timed out publishing offline status")
	}
	n.client.Disconnect(250)
	log.Println("[MQTT] Disconnected")
}

func (n *Notifier) publish(topic string, payload interface{}) {
	if !n.client.IsConnected() {
		return
	}
	token := n.client.Publish(topic, qosAtLeastOnce, true, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("[MQTT] Publish error to %s: %v", topic, err)
		}
	}()
}

func (n *Notifier) subscribe() {
	topic := n.prefix + "/+/pattern/stop"
	token := n.client.Subscribe(topic, qosAtLeastOnce, n.handleStop)
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] Subscribed to %s", topic)
}

func (n *Notifier) handleStop(_ paho.Client, msg paho.Message) {
	deviceID := n.deviceFromStopTopic(msg.Topic())
	if deviceID == "" || n.onStop == nil {
		return
	}
	if n.onStop(deviceID) {
		log.Printf("[MQTT] Stopped pattern on %s", deviceID)
	}
}

func (n *Notifier) deviceFromStopTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, n.prefix+"/")
	if !ok {
		return ""
	}
	deviceID, ok := strings.CutSuffix(rest, "/pattern/stop")
	if !ok || strings.Contains(deviceID, "/") {
		return ""
	}
	return deviceID
}

func (n *Notifier) patternTopic(deviceID string) string {
	return n.prefix + "/" + deviceID + "/pattern"
}

func (n *Notifier) availabilityTopic() string {
	return n.prefix + "/availability"
}
