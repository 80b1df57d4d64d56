package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/idpgw/twin"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the modem (e.g. 9600)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// CRC requests CRC framing on the AT interface
	CRC bool
	// ATTimeout is the default response timeout of a command
	ATTimeout time.Duration
	// StatusInterval is the satellite status poll period
	StatusInterval time.Duration
	// TrackingInterval requests a GNSS fix periodically, 0 disables tracking
	TrackingInterval time.Duration
	// Notifications lists the event notifications enabled at startup
	Notifications []string
	// JournalPath is the SQLite database holding the message history, empty
	// disables the journal
	JournalPath string
	// MQTTBroker is the broker URL (e.g. "tcp://localhost:1883"), empty
	// disables MQTT
	MQTTBroker   string
	MQTTClientID string
	// MQTTTopic is the prefix of every topic the gateway uses
	MQTTTopic    string
	MQTTUsername string
	MQTTPassword string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if _, err := config.notificationFlags(); err != nil {
		return nil, err
	}
	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 9600
		c.LogLevel = "info"
		c.ATTimeout = 5 * time.Second
		c.StatusInterval = twin.DefaultStatusInterval
		c.JournalPath = "data/idpgw.db"
		c.MQTTClientID = "idpgw"
		c.MQTTTopic = "idp"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if crc := os.Getenv("CRC"); crc != "" {
			if b, err := strconv.ParseBool(crc); err == nil {
				c.CRC = b
			}
		}

		if err := envDuration("AT_TIMEOUT", &c.ATTimeout); err != nil {
			return err
		}
		if err := envDuration("STATUS_INTERVAL", &c.StatusInterval); err != nil {
			return err
		}
		if err := envDuration("TRACKING_INTERVAL", &c.TrackingInterval); err != nil {
			return err
		}

		if n := os.Getenv("NOTIFICATIONS"); n != "" {
			c.Notifications = splitList(n)
		}

		if path, ok := os.LookupEnv("JOURNAL_PATH"); ok {
			c.JournalPath = path
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MQTTBroker = broker
		}
		if id := os.Getenv("MQTT_CLIENT_ID"); id != "" {
			c.MQTTClientID = id
		}
		if topic := os.Getenv("MQTT_TOPIC"); topic != "" {
			c.MQTTTopic = topic
		}
		if user := os.Getenv("MQTT_USERNAME"); user != "" {
			c.MQTTUsername = user
		}
		if pass := os.Getenv("MQTT_PASSWORD"); pass != "" {
			c.MQTTPassword = pass
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "crc":
				c.CRC = f.Value.String() == "true"
			case "at-timeout":
				err = errors.Join(err, flagDuration(f, &c.ATTimeout))
			case "status-interval":
				err = errors.Join(err, flagDuration(f, &c.StatusInterval))
			case "tracking-interval":
				err = errors.Join(err, flagDuration(f, &c.TrackingInterval))
			case "notifications":
				c.Notifications = splitList(f.Value.String())
			case "journal":
				c.JournalPath = f.Value.String()
			case "mqtt-broker":
				c.MQTTBroker = f.Value.String()
			case "mqtt-topic":
				c.MQTTTopic = f.Value.String()
			}
		})
		return err
	}
}

// notificationFlags resolves the configured notification names.
func (c *Config) notificationFlags() (twin.Notification, error) {
	var n twin.Notification
	for _, name := range c.Notifications {
		f, ok := twin.ParseNotification(name)
		if !ok {
			return 0, fmt.Errorf("unknown notification %q", name)
		}
		n |= f
	}
	return n, nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := parseDuration(key, v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func flagDuration(f *flag.Flag, dst *time.Duration) error {
	d, err := parseDuration(f.Name, f.Value.String())
	if err == nil {
		*dst = d
	}
	return err
}

func parseDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
