// Package config loads station configuration for the gamp and gdeamp tools.
//
// Configuration comes from a single YAML file named by the --config flag or
// the FLAMP_CONFIG environment variable. Command-line flags override values
// from the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"4d63.com/tz"
	"gopkg.in/yaml.v3"

	"github.com/drunlade/go-flamp/amp"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "FLAMP_CONFIG"

// Config is the station configuration.
type Config struct {
	// Callsign identifies this station in ID blocks and the preamble.
	Callsign string `yaml:"callsign"`

	// To is the default recipient call sign.
	To string `yaml:"to"`

	// Send configures the encoder.
	Send SendConfig `yaml:"send"`

	// Receive configures the decoder.
	Receive ReceiveConfig `yaml:"receive"`

	// SSH configures the remote modem host.
	SSH SSHConfig `yaml:"ssh"`

	// Timezone is the IANA zone FILE timestamps are written and read in.
	// Default: the local zone
	Timezone string `yaml:"timezone"`

	// LogFile receives protocol logs when set; "-" is stderr.
	LogFile string `yaml:"log_file"`

	// LogLevel is debug, info or error. Default: info
	LogLevel string `yaml:"log_level"`

	// TraceChannel logs every line crossing the channel at debug level.
	TraceChannel bool `yaml:"trace_channel"`
}

// SendConfig configures the encoder.
type SendConfig struct {
	// BlockSize is the DATA payload size.
	// Default: 64
	BlockSize int `yaml:"block_size"`

	// Compression names a compressor (lzma, zstd, lz4) or is empty.
	Compression string `yaml:"compression"`

	// Base is base64, base91 or empty.
	Base string `yaml:"base"`

	// Description is sent in a DESC block.
	Description string `yaml:"description"`

	// LineDelay pauses between lines for transmitters that key on input.
	LineDelay time.Duration `yaml:"line_delay"`
}

// ReceiveConfig configures the decoder.
type ReceiveConfig struct {
	// OutputDir is where received files are written.
	// Default: current directory
	OutputDir string `yaml:"output_dir"`

	// Overwrite replaces existing files instead of renaming.
	Overwrite bool `yaml:"overwrite"`

	// IdleTimeout ends reception after this long without input.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// SSHConfig configures the remote modem host.
type SSHConfig struct {
	Host           string `yaml:"host"`
	User           string `yaml:"user"`
	KeyFile        string `yaml:"key_file"`
	SendCommand    string `yaml:"send_command"`
	ReceiveCommand string `yaml:"receive_command"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Send: SendConfig{
			BlockSize: amp.DefaultBlockSize,
		},
		Receive: ReceiveConfig{
			OutputDir: ".",
		},
		SSH: SSHConfig{
			SendCommand:    "minimodem --tx 300",
			ReceiveCommand: "minimodem --rx 300",
		},
	}
}

// Load loads configuration from the file named by FLAMP_CONFIG, or returns
// the defaults when it is not set.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// expandPaths expands a leading ~ and environment variables in paths.
func (c *Config) expandPaths() {
	for _, p := range []*string{&c.Receive.OutputDir, &c.LogFile, &c.SSH.KeyFile} {
		*p = expandPath(*p)
	}
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return os.ExpandEnv(p)
}

// Validate checks values that would otherwise fail deep inside a transfer.
func (c *Config) Validate() error {
	if c.Send.BlockSize < 1 || c.Send.BlockSize > amp.MaxBlockSize {
		return fmt.Errorf("send.block_size must be between 1 and %d, got %d", amp.MaxBlockSize, c.Send.BlockSize)
	}
	if _, err := amp.ParseBaseEncoding(c.Send.Base); err != nil {
		return err
	}
	if c.Send.Compression != "" {
		if _, ok := amp.DefaultCompressors().Lookup(c.Send.Compression); !ok {
			return fmt.Errorf("send.compression: unknown compressor %q", c.Send.Compression)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := amp.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// OpenLogger returns the protocol logger LogFile names, or a NoopLogger.
// The returned close function is never nil.
func (c *Config) OpenLogger() (amp.Logger, func() error, error) {
	if c.LogFile == "" {
		return amp.NoopLogger{}, func() error { return nil }, nil
	}
	level, err := amp.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	l, err := amp.NewFileLogger(c.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	l.SetLevel(level)
	return l, l.Close, nil
}

// Location resolves Timezone with the embedded zone database, so it works on
// hosts without tzdata.
func (c *Config) Location() (*time.Location, error) {
	return LoadLocation(c.Timezone)
}

// LoadLocation resolves an IANA zone name. Empty and "Local" mean the local
// zone.
func LoadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := tz.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// SessionConfig converts the station configuration to an amp session
// configuration.
func (c *Config) SessionConfig() (*amp.Config, error) {
	base, err := amp.ParseBaseEncoding(c.Send.Base)
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	sc := amp.DefaultConfig()
	sc.BlockSize = c.Send.BlockSize
	sc.Compression = c.Send.Compression
	sc.Base = base
	sc.FromCallsign = c.Callsign
	sc.ToCallsign = c.To
	sc.Description = c.Send.Description
	sc.LineDelay = c.Send.LineDelay
	sc.IdleTimeout = c.Receive.IdleTimeout
	sc.Location = loc
	sc.TraceChannel = c.TraceChannel
	return sc, nil
}
