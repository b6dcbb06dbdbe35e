// Command mcp-cli is a command-line client for Model Context Protocol
// servers. It connects over stdio, SSE, or WebSocket, and exposes the
// server's tools, resources, and prompts as one-shot subcommands or an
// interactive session.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	mcp "github.com/MegaGrindStone/mcp-cli"
	"github.com/cenkalti/backoff/v5"
	"github.com/joho/godotenv"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: mcp-cli [flags] <command> [args]

Commands:
  tools [pattern]        List available tools, optionally filtered by glob pattern
  resources [pattern]    List available resources
  prompts [pattern]      List available prompts
  call <tool> [json]     Call a tool with JSON arguments
  read <uri>             Read a resource
  prompt <name> [json]   Get a prompt with JSON arguments
  interactive            Interactive mode

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	server := flag.String("server", "", "server command to spawn for the stdio transport")
	serverURL := flag.String("url", "", "server URL for the sse or ws transports")
	transport := flag.String("transport", "", "transport kind: stdio, sse, or ws")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	// A .env file can seed the MCP_CLI_* variables read by loadConfig.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-cli: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Server = *server
	}
	if *serverURL != "" {
		cfg.URL = *serverURL
	}
	if *transport != "" {
		cfg.Transport = *transport
	}
	if *verbose {
		cfg.Verbose = true
	}

	initLogger(cfg.Verbose)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()

	client, err := connect(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	info := client.ServerInfo()
	slog.Info("connected to server", "name", info.Name, "version", info.Version)

	if err := runCommand(ctx, client, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-cli: %s\n", renderError(err))
		client.Close()
		os.Exit(1)
	}
}

// initLogger configures the process-wide logger once at startup; it is not
// mutated afterwards.
func initLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// connect builds a fresh client per attempt and retries with exponential
// backoff. Retrying lives here, in the command layer: the session engine
// itself never retries.
func connect(ctx context.Context, cfg config) (*mcp.Client, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, func() (*mcp.Client, error) {
		transport, err := newTransport(cfg)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		client := mcp.NewClient(mcp.Info{Name: "mcp-cli", Version: version}, transport,
			mcp.WithConnectTimeout(cfg.ConnectTimeout),
			mcp.WithRequestTimeout(cfg.RequestTimeout),
			mcp.WithNotificationHandler(logNotification),
		)
		if err := client.Connect(ctx); err != nil {
			slog.Warn("connect attempt failed", "err", err)
			return nil, err
		}
		return client, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(cfg.ConnectRetries))
}

func newTransport(cfg config) (mcp.Transport, error) {
	switch cfg.Transport {
	case "stdio":
		if cfg.Server == "" {
			return nil, fmt.Errorf("stdio transport requires a server command")
		}
		fields := strings.Fields(cfg.Server)
		return mcp.NewCommandStdIO(fields[0], fields[1:]...), nil
	case "sse":
		if cfg.URL == "" {
			return nil, fmt.Errorf("sse transport requires a url")
		}
		return mcp.NewSSE(cfg.URL, nil), nil
	case "ws":
		if cfg.URL == "" {
			return nil, fmt.Errorf("ws transport requires a url")
		}
		return mcp.NewWebSocket(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want stdio, sse, or ws)", cfg.Transport)
	}
}

func logNotification(method string, params json.RawMessage) {
	slog.Info("server notification", "method", method, "params", string(params))
}
