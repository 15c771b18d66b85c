package aodvv2

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config sizes the server's resources. None of these options changes
// protocol semantics.
type Config struct {
	// QueueSize is the worker mailbox capacity. Producers block when the
	// mailbox is full.
	QueueSize int `toml:"queue_size"`

	// PacketSize is the wire packet buffer size in bytes.
	PacketSize int `toml:"packet_size"`

	// MessageSize is the per-message encode buffer size in bytes.
	MessageSize int `toml:"message_size"`

	// AddrTLVSize is the address-TLV budget per message in bytes.
	AddrTLVSize int `toml:"addr_tlv_size"`

	// Port is the well-known UDP port route messages travel on.
	Port uint16 `toml:"port"`

	// DefaultMetric is the metric type used for locally originated route
	// requests.
	DefaultMetric MetricType `toml:"default_metric"`
}

// DefaultConfig returns the sizing the protocol was designed around.
func DefaultConfig() Config {
	return Config{
		QueueSize:     32,
		PacketSize:    128,
		MessageSize:   128,
		AddrTLVSize:   1000,
		Port:          DefaultPort,
		DefaultMetric: MetricHopCount,
	}
}

// LoadConfig reads a TOML config file over the defaults, so a file only has
// to name the options it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.MessageSize < 16 {
		return fmt.Errorf("message_size must be at least 16, got %d", c.MessageSize)
	}
	if c.PacketSize < c.MessageSize {
		return fmt.Errorf("packet_size (%d) must not be smaller than message_size (%d)",
			c.PacketSize, c.MessageSize)
	}
	if c.AddrTLVSize < 1 {
		return fmt.Errorf("addr_tlv_size must be at least 1, got %d", c.AddrTLVSize)
	}
	if c.Port == 0 {
		return fmt.Errorf("port must be non-zero")
	}
	return nil
}
