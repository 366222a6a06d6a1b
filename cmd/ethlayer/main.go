// Command ethlayer answers Ethereum state queries straight from a node's
// chain database, forwarding everything else to an upstream node.
//
// Usage:
//
//	ethlayer [flags] <command> [args]
//
// Commands:
//
//	balance <address> [block]          Account balance in wei
//	code <address> [block]             Contract code
//	storage <address> <slot> [block]   Raw storage slot value
//	block [block]                      Block header and transaction hashes
//	call <to> [data] [block]           Read-only call
//	logs <from> <to> [address]         Logs in a block range
//	chainid                            Chain id (forwarded upstream)
//	blocknumber                        Head number (forwarded upstream)
//	serve                              Serve the handlers over JSON-RPC
//
// Flags:
//
//	--env               .env file to load (default: .env)
//	--db.env            Variable holding the database path (default: ETHLAYER_DB_PATH)
//	--rpc               Upstream node URL for forwarded calls
//	--http.addr         Listen address for serve (default: 127.0.0.1:8545)
//	--http.corsdomain   Origins allowed to call the server
//	--http.ratelimit    Requests per second per client (default: unlimited)
//	--http.burst        Request burst per client (default: 20)
//	--metrics.addr      Prometheus listen address, empty to disable
//	--gascap            Gas cap for simulated calls
//	--evm.timeout       Timeout for simulated calls
//	--verbosity         Log level 0-5 (default: 3)
//	--log.format        Log format: json, text (default: json)
//	--version           Print version and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eth2030/ethlayer/layer"
	"github.com/eth2030/ethlayer/log"
	"github.com/eth2030/ethlayer/metrics"
	"github.com/eth2030/ethlayer/provider"
	"github.com/eth2030/ethlayer/rpc"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, rest, exit, code := parseFlags(args)
	if exit {
		return code
	}
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no command given")
		return 2
	}

	log.SetDefault(log.NewWithFormat(os.Stderr, log.Format(cfg.LogFormat), log.VerbosityToLevel(cfg.Verbosity)))
	lg := log.Default().Module("cli")

	if err := loadEnv(cfg.EnvFile); err != nil {
		lg.Error("Failed to load env file", "path", cfg.EnvFile, "err", err)
		return 1
	}
	rcfg := cfg.handlerConfig()
	if err := rcfg.Validate(); err != nil {
		lg.Error("Invalid configuration", "err", err)
		return 1
	}

	l, err := layer.NewLayerFromDB(cfg.DBEnv)
	if err != nil {
		lg.Error("Failed to open chain database", "env", cfg.DBEnv, "err", err)
		return 1
	}
	l = l.WithConfig(rcfg)
	defer l.Provider().Close()
	defer l.Close()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, lg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if rest[0] == "serve" {
		if err := serve(ctx, cfg.HTTPAddr, cfg.httpConfig(), l.Handlers(), lg); err != nil {
			lg.Error("Server failed", "err", err)
			return 1
		}
		return 0
	}

	var inner provider.Provider = provider.Offline{}
	if cfg.RPCURL != "" {
		root, err := provider.Dial(ctx, cfg.RPCURL)
		if err != nil {
			lg.Error("Failed to dial upstream", "url", cfg.RPCURL, "err", err)
			return 1
		}
		defer root.Close()
		inner = root
	}

	if err := execute(ctx, provider.Stack(inner, l), rest[0], rest[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// loadEnv loads path into the environment. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func serveMetrics(addr string, lg *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler("ethlayer"))
	lg.Info("Serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		lg.Warn("Metrics server stopped", "err", err)
	}
}

// serve exposes the handler bundle over HTTP and WebSocket until ctx ends.
func serve(ctx context.Context, addr string, hcfg rpc.HTTPConfig, h *rpc.EthHandlers, lg *log.Logger) error {
	srv, err := rpc.NewServer(h)
	if err != nil {
		return err
	}
	defer srv.Stop()

	httpSrv := &http.Server{Addr: addr, Handler: srv.HTTPHandler(hcfg), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()
	lg.Info("Serving JSON-RPC", "addr", addr, "ws", "/ws")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	lg.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// parseFlags parses CLI arguments into a config. Returns the config, the
// remaining arguments, whether the caller should exit immediately, and the
// exit code.
func parseFlags(args []string) (config, []string, bool, int) {
	cfg := defaultConfig()
	fs := newFlagSet(&cfg)

	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, nil, true, 2
	}

	if *showVersion {
		fmt.Printf("ethlayer %s (commit %s)\n", version, commit)
		return cfg, nil, true, 0
	}

	return cfg, fs.Args(), false, 0
}

