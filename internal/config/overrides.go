package config

import (
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Environment variables read by FromEnv.
const (
	EnvConfig      = "DUALBOT_CONFIG"
	EnvNetwork     = "DUALBOT_NETWORK"
	EnvSymbol      = "DUALBOT_SYMBOL"
	EnvChannelSize = "DUALBOT_CHANNEL_SIZE"
)

// Option mutates a Config when applied via Apply.
type Option func(*Config)

// Apply applies opts to a copy of base.
func Apply(base Config, opts ...Option) Config {
	cfg := base.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c Config) clone() Config {
	out := c
	out.Channels = slices.Clone(c.Channels)
	out.Limits.PerChannel = maps.Clone(c.Limits.PerChannel)
	out.Feed.Subscribe = slices.Clone(c.Feed.Subscribe)
	out.Policy.Params = maps.Clone(c.Policy.Params)
	return out
}

// WithNetwork overrides the network.
func WithNetwork(n Network) Option {
	return func(c *Config) {
		c.Network = Network(strings.ToLower(strings.TrimSpace(string(n))))
	}
}

// WithSymbol overrides the traded symbol.
func WithSymbol(symbol string) Option {
	return func(c *Config) {
		if s := strings.ToUpper(strings.TrimSpace(symbol)); s != "" {
			c.Symbol = s
		}
	}
}

// WithChannelSize overrides the per-channel quote size.
func WithChannelSize(size decimal.Decimal) Option {
	return func(c *Config) {
		c.Policy.ChannelSize = D(size)
	}
}

// FromEnv turns DUALBOT_* variables into options. lookup is usually os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) ([]Option, error) {
	var opts []Option
	if v, ok := lookup(EnvNetwork); ok && strings.TrimSpace(v) != "" {
		opts = append(opts, WithNetwork(Network(v)))
	}
	if v, ok := lookup(EnvSymbol); ok && strings.TrimSpace(v) != "" {
		opts = append(opts, WithSymbol(v))
	}
	if v, ok := lookup(EnvChannelSize); ok && strings.TrimSpace(v) != "" {
		size, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, invalid("%s: %q is not a decimal", EnvChannelSize, v)
		}
		opts = append(opts, WithChannelSize(size))
	}
	return opts, nil
}

// Flags are the command-line overrides.
type Flags struct {
	ConfigPath string
	Mainnet    bool
	Size       string
	Symbol     string
}

// ParseFlags parses -config, -mainnet, -size and -symbol from args.
func ParseFlags(name string, args []string, output io.Writer) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.StringVar(&f.ConfigPath, "config", "", "Path to the YAML configuration file (env "+EnvConfig+")")
	fs.BoolVar(&f.Mainnet, "mainnet", false, "Trade on mainnet instead of testnet")
	fs.StringVar(&f.Size, "size", "", "Quote size per channel")
	fs.StringVar(&f.Symbol, "symbol", "", "Traded symbol")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Options turns set flags into options.
func (f Flags) Options() ([]Option, error) {
	var opts []Option
	if f.Mainnet {
		opts = append(opts, WithNetwork(NetworkMainnet))
	}
	if s := strings.TrimSpace(f.Size); s != "" {
		size, err := decimal.NewFromString(s)
		if err != nil {
			return nil, invalid("-size: %q is not a decimal", f.Size)
		}
		opts = append(opts, WithChannelSize(size))
	}
	if f.Symbol != "" {
		opts = append(opts, WithSymbol(f.Symbol))
	}
	return opts, nil
}

// Resolve loads the file named by the flags or DUALBOT_CONFIG, then applies
// environment overrides and flag overrides in that order, and validates the result.
func Resolve(ctx context.Context, flags Flags, lookup func(string) (string, bool)) (Config, error) {
	path := flags.ConfigPath
	if path == "" {
		if v, ok := lookup(EnvConfig); ok {
			path = strings.TrimSpace(v)
		}
	}
	cfg, err := Load(ctx, path)
	if err != nil {
		return Config{}, err
	}
	envOpts, err := FromEnv(lookup)
	if err != nil {
		return Config{}, err
	}
	flagOpts, err := flags.Options()
	if err != nil {
		return Config{}, err
	}
	cfg = Apply(cfg, append(envOpts, flagOpts...)...)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
