package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewCouncilMCPServer creates an MCP server with the council tools
// registered.
func NewCouncilMCPServer(svc *CouncilService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "council",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "council_dispatch",
		Description: "Run one deliberation round for a session. Dispatches every pending member concurrently, records votes and audit entries, and synthesizes a final decision once all members have voted.",
	}, svc.Dispatch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "council_status",
		Description: "List deliberation sessions, optionally filtered by status (running, decided, cancelled, timeout).",
	}, svc.Status)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "council_show",
		Description: "Show one session in full: member panel with votes, the append-only audit log, and the final decision when one exists.",
	}, svc.Show)

	return server
}

// RunMCPServer starts an HTTP server exposing the council MCP tools.
func RunMCPServer(ctx context.Context, svc *CouncilService, addr string) error {
	server := NewCouncilMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
