package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eth2030/ethlayer/rpc"
)

// config is the resolved command-line configuration.
type config struct {
	EnvFile     string
	DBEnv       string
	RPCURL      string
	HTTPAddr    string
	CORSDomains string
	RateLimit   float64
	RateBurst   int
	MetricsAddr string
	GasCap      uint64
	EVMTimeout  time.Duration
	Verbosity   int
	LogFormat   string
}

func defaultConfig() config {
	h := rpc.DefaultConfig()
	return config{
		EnvFile:    ".env",
		DBEnv:      "ETHLAYER_DB_PATH",
		HTTPAddr:   "127.0.0.1:8545",
		RateBurst:  20,
		GasCap:     h.GasCap,
		EVMTimeout: h.EVMTimeout,
		Verbosity:  3,
		LogFormat:  "json",
	}
}

// handlerConfig applies the flag overrides to the default handler settings.
func (c config) handlerConfig() rpc.Config {
	h := rpc.DefaultConfig()
	h.GasCap = c.GasCap
	h.EVMTimeout = c.EVMTimeout
	return h
}

// httpConfig builds the server front configuration.
func (c config) httpConfig() rpc.HTTPConfig {
	var origins []string
	for _, o := range strings.Split(c.CORSDomains, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return rpc.HTTPConfig{CORSOrigins: origins, RateLimit: c.RateLimit, RateBurst: c.RateBurst}
}

// newFlagSet creates a flagSet that binds all CLI flags to the given
// config. The FlagSet uses ContinueOnError so callers control the error
// handling behavior.
func newFlagSet(cfg *config) *flagSet {
	fs := newCustomFlagSet("ethlayer")
	fs.StringVar(&cfg.EnvFile, "env", cfg.EnvFile, ".env file to load, empty to skip")
	fs.StringVar(&cfg.DBEnv, "db.env", cfg.DBEnv, "environment variable holding the chain database path")
	fs.StringVar(&cfg.RPCURL, "rpc", cfg.RPCURL, "upstream node URL for forwarded calls")
	fs.StringVar(&cfg.HTTPAddr, "http.addr", cfg.HTTPAddr, "listen address for the serve command")
	fs.StringVar(&cfg.CORSDomains, "http.corsdomain", cfg.CORSDomains, "comma separated origins allowed to call the server (* for any)")
	fs.Float64Var(&cfg.RateLimit, "http.ratelimit", cfg.RateLimit, "requests per second per client (0 = unlimited)")
	fs.IntVar(&cfg.RateBurst, "http.burst", cfg.RateBurst, "request burst per client")
	fs.StringVar(&cfg.MetricsAddr, "metrics.addr", cfg.MetricsAddr, "Prometheus listen address, empty to disable")
	fs.Uint64Var(&cfg.GasCap, "gascap", cfg.GasCap, "gas cap for simulated calls (0 = no cap)")
	fs.DurationVar(&cfg.EVMTimeout, "evm.timeout", cfg.EVMTimeout, "timeout for simulated calls (0 = none)")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0=silent, 5=trace)")
	fs.StringVar(&cfg.LogFormat, "log.format", cfg.LogFormat, "log format (json, text)")
	return fs
}

// flagSet wraps flag.FlagSet to add support for uint64 flags.
type flagSet struct {
	*flag.FlagSet
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior.
func newCustomFlagSet(name string) *flagSet {
	return &flagSet{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
}

// Uint64Var defines a uint64 flag with strict decimal parsing.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

type uint64Value struct {
	p *uint64
}

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}
