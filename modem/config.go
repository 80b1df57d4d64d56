package modem

import (
	"log/slog"
	"time"

	"i4.energy/across/idpgw/at"
)

const (
	DefaultATTimeout           = 5 * time.Second
	DefaultDisconnectThreshold = 3
	DefaultPollInterval        = 50 * time.Millisecond
	DefaultURCBuffer           = 100
)

type Config struct {
	Dialer Dialer
	// ATTimeout applies to commands submitted without WithTimeout.
	ATTimeout time.Duration
	// Retries applies to commands submitted without WithRetries.
	Retries int
	// BusyTimeout bounds how long Command waits for its request to be sent.
	// Zero queues indefinitely.
	BusyTimeout time.Duration
	// DisconnectThreshold is the number of consecutive timeouts after
	// which the modem is considered disconnected.
	DisconnectThreshold int
	// PollInterval is how often the loop checks the active command timeout.
	PollInterval time.Duration
	// Session is the framing assumed before any traffic has been seen.
	Session   at.Session
	URCBuffer int
	Logger    *slog.Logger
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ATTimeout == 0 {
		c.ATTimeout = DefaultATTimeout
	}
	if c.DisconnectThreshold == 0 {
		c.DisconnectThreshold = DefaultDisconnectThreshold
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.URCBuffer == 0 {
		c.URCBuffer = DefaultURCBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ConfigBuilder assembles a validated Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{Session: at.DefaultSession()}}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithRetries(n int) *ConfigBuilder {
	b.config.Retries = n
	return b
}

func (b *ConfigBuilder) WithBusyTimeout(d time.Duration) *ConfigBuilder {
	b.config.BusyTimeout = d
	return b
}

func (b *ConfigBuilder) WithDisconnectThreshold(n int) *ConfigBuilder {
	b.config.DisconnectThreshold = n
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.PollInterval = d
	return b
}

func (b *ConfigBuilder) WithSession(s at.Session) *ConfigBuilder {
	b.config.Session = s
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
