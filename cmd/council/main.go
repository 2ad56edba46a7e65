package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dusk-indust/council/internal/config"
	"github.com/dusk-indust/council/internal/deliberate"
	"github.com/dusk-indust/council/internal/gateway"
	"github.com/dusk-indust/council/internal/mcptools"
	"github.com/dusk-indust/council/internal/store"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigDir  string
	DBPath     string
	GatewayURL string
	ServeMCP   bool
	Version    bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("council", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigDir, "config-dir", ".", "directory holding council.yml")
	fs.StringVar(&flags.DBPath, "db", "", "sqlite database file (overrides config; empty uses the in-memory store)")
	fs.StringVar(&flags.GatewayURL, "gateway-url", "", "JSON-RPC endpoint for member calls (overrides config)")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server exposing the council tools")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: council [flags] <command>")
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  new       create a deliberation session with its member panel")
		fmt.Fprintln(fs.Output(), "  dispatch  run one fan-out round for a session")
		fmt.Fprintln(fs.Output(), "  status    list sessions or show one in full")
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return err
	}
	if flags.DBPath != "" {
		cfg.DBPath = flags.DBPath
	}
	if flags.GatewayURL != "" {
		cfg.GatewayURL = flags.GatewayURL
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	if flags.ServeMCP {
		gw, err := newGateway(cfg)
		if err != nil {
			return err
		}
		coord := deliberate.NewCoordinator(st, gw, nil)
		svc := mcptools.NewCouncilService(st, coord)
		return mcptools.RunMCPServer(ctx, svc, cfg.MCPAddr)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return nil
	}

	switch rest[0] {
	case "new":
		return runNew(ctx, st, rest[1:])
	case "dispatch":
		gw, err := newGateway(cfg)
		if err != nil {
			return err
		}
		return runDispatch(ctx, st, gw, rest[1:])
	case "status":
		return runStatus(ctx, st, rest[1:])
	default:
		return fmt.Errorf("unknown command: %s", rest[0])
	}
}

// openStore selects the backing store; an empty DBPath means in-memory.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DBPath == "" {
		return store.NewMemStore(), nil
	}
	return store.OpenSQLite(cfg.DBPath)
}

// newGateway builds the JSON-RPC gateway from config. Commands that talk to
// providers need an endpoint; the purely local ones never call this.
func newGateway(cfg *config.Config) (gateway.Gateway, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("no gateway endpoint: set gatewayUrl in council.yml, COUNCIL_GATEWAY_URL, or -gateway-url")
	}
	return gateway.NewHTTPGateway(cfg.GatewayURL, gateway.WithTimeout(cfg.GatewayTimeout.Std())), nil
}
