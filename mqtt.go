package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"i4.energy/across/idpgw/twin"
)

// Publisher is the subset of mqtt.Client used by the bridge.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTTBridge publishes twin events and MT messages and accepts MO messages
// on <topic>/send.
type MQTTBridge struct {
	client Publisher
	topic  string
	logger *slog.Logger
}

func (b *MQTTBridge) Event(ev twin.Event) {
	b.publish(b.topic+"/event/"+string(ev.Kind), ev)
}

func (b *MQTTBridge) Received(msg twin.MTMessage) {
	b.publish(b.topic+"/mt/"+strconv.Itoa(int(msg.SIN)), msg)
}

func (b *MQTTBridge) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("Failed to encode MQTT payload", "error", err, "topic", topic)
		return
	}
	// fire and forget, the client queues while reconnecting
	b.client.Publish(topic, 1, false, payload)
}

// handleSend decodes a SendRequest and passes it to send. The outcome is
// published on <topic>/sent.
func (b *MQTTBridge) handleSend(ctx context.Context, payload []byte, send func(context.Context, SendRequest) (string, error)) {
	var req SendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("MQTT bad payload", "error", err)
		return
	}
	type sent struct {
		Name  string `json:"name,omitempty"`
		Error string `json:"error,omitempty"`
	}
	name, err := send(ctx, req)
	if err != nil {
		b.logger.Error("Failed to send MQTT message", "error", err, "sin", req.SIN)
		b.publish(b.topic+"/sent", sent{Error: err.Error()})
		return
	}
	b.publish(b.topic+"/sent", sent{Name: name})
}

// StartMQTT connects to the configured broker. It returns nil when no broker
// is configured. The connection is closed when ctx is done.
func StartMQTT(ctx context.Context, config *Config, logger *slog.Logger, send func(context.Context, SendRequest) (string, error)) *MQTTBridge {
	if config.MQTTBroker == "" {
		return nil
	}
	logger = logger.With("component", "mqtt")
	bridge := &MQTTBridge{topic: config.MQTTTopic, logger: logger}
	sendTopic := config.MQTTTopic + "/send"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.MQTTBroker)
	opts.SetClientID(config.MQTTClientID)
	if config.MQTTUsername != "" {
		opts.SetUsername(config.MQTTUsername)
		opts.SetPassword(config.MQTTPassword)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("MQTT connected", "subscribe", sendTopic)
		token := c.Subscribe(sendTopic, 1, func(_ mqtt.Client, m mqtt.Message) {
			bridge.handleSend(ctx, m.Payload(), send)
		})
		if token.WaitTimeout(10*time.Second) && token.Error() != nil {
			logger.Error("MQTT subscribe failed", "error", token.Error())
		}
	})

	client := mqtt.NewClient(opts)
	bridge.client = client
	if t := client.Connect(); t.WaitTimeout(10*time.Second) && t.Error() != nil {
		logger.Error("MQTT connect failed", "error", t.Error())
	}
	go func() {
		<-ctx.Done()
		client.Disconnect(500)
	}()
	return bridge
}
