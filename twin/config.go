package twin

import (
	"log/slog"
	"time"
)

const (
	DefaultConnectInterval = 5 * time.Second
	DefaultStatusInterval  = 15 * time.Second
	DefaultMOInterval      = 5 * time.Second
	DefaultMTInterval      = 15 * time.Second
	DefaultEventBuffer     = 100
)

// Config holds the configuration for a Twin. Zero intervals disable the
// matching automation timer, except where a default applies.
type Config struct {
	// Commander issues AT commands, normally a *modem.Modem
	Commander Commander
	// PreferCRC enables CRC framing during initialization
	PreferCRC bool
	// ConnectInterval is the delay between ATZ attempts while connecting
	ConnectInterval time.Duration
	// StatusInterval is the satellite status poll period
	StatusInterval time.Duration
	// MOInterval is the MO queue poll period
	MOInterval time.Duration
	// MTInterval is the MT queue poll period
	MTInterval time.Duration
	// EventsInterval polls S89 for asserted notifications, 0 disables it
	EventsInterval time.Duration
	// TrackingInterval requests a location periodically, 0 disables it
	TrackingInterval time.Duration
	// LowSNRThreshold is the C/N0 in dB-Hz at or below which low_snr is raised
	LowSNRThreshold float64
	// Notifications, when non-zero, is written to S88 during initialization
	Notifications Notification
	// Logger is used for diagnostic output
	Logger *slog.Logger

	now func() time.Time
}

func (c Config) validate() error {
	if c.Commander == nil {
		return ErrNoCommander
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ConnectInterval <= 0 {
		c.ConnectInterval = DefaultConnectInterval
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.MOInterval <= 0 {
		c.MOInterval = DefaultMOInterval
	}
	if c.MTInterval <= 0 {
		c.MTInterval = DefaultMTInterval
	}
	if c.LowSNRThreshold == 0 {
		c.LowSNRThreshold = DefaultLowSNRThreshold
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
}

// ConfigBuilder helps build a Config
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new ConfigBuilder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithCommander(c Commander) *ConfigBuilder {
	b.config.Commander = c
	return b
}

func (b *ConfigBuilder) WithCRC(enabled bool) *ConfigBuilder {
	b.config.PreferCRC = enabled
	return b
}

func (b *ConfigBuilder) WithConnectInterval(d time.Duration) *ConfigBuilder {
	b.config.ConnectInterval = d
	return b
}

func (b *ConfigBuilder) WithStatusInterval(d time.Duration) *ConfigBuilder {
	b.config.StatusInterval = d
	return b
}

func (b *ConfigBuilder) WithMessageIntervals(mo, mt time.Duration) *ConfigBuilder {
	b.config.MOInterval = mo
	b.config.MTInterval = mt
	return b
}

func (b *ConfigBuilder) WithEventsInterval(d time.Duration) *ConfigBuilder {
	b.config.EventsInterval = d
	return b
}

func (b *ConfigBuilder) WithTracking(d time.Duration) *ConfigBuilder {
	b.config.TrackingInterval = d
	return b
}

func (b *ConfigBuilder) WithLowSNRThreshold(dbhz float64) *ConfigBuilder {
	b.config.LowSNRThreshold = dbhz
	return b
}

func (b *ConfigBuilder) WithNotifications(n Notification) *ConfigBuilder {
	b.config.Notifications = n
	return b
}

func (b *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	b.config.Logger = logger
	return b
}

// Build validates and returns the Config
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	c := b.config
	c.setDefaults()
	return c, nil
}
