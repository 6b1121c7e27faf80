package watchfs

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer builds the file-watcher MCP server. Filesystem events go out as
// "notifications/file_changed" pushes to connected clients.
func NewServer() (*server.MCPServer, *Watcher, error) {
	s := server.NewMCPServer(
		"filewatch-server",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	w, err := NewWatcher(func(path, op string) {
		s.SendNotificationToAllClients("notifications/file_changed", map[string]any{
			"status": op + " " + path,
			"path":   path,
			"op":     op,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.AddTool(watchPathTool(), handleWatchPath(w))
	s.AddTool(unwatchPathTool(), handleUnwatchPath(w))
	s.AddTool(listWatchesTool(), handleListWatches(w))

	return s, w, nil
}

func watchPathTool() mcp.Tool {
	return mcp.NewTool("watch_path",
		mcp.WithDescription("Start watching a file or directory for changes"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Filesystem path to watch"),
		),
	)
}

func handleWatchPath(w *Watcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		path, _ := args["path"].(string)
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		if err := w.Watch(path); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("✅ Watching " + path), nil
	}
}

func unwatchPathTool() mcp.Tool {
	return mcp.NewTool("unwatch_path",
		mcp.WithDescription("Stop watching a path"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Filesystem path to stop watching"),
		),
	)
}

func handleUnwatchPath(w *Watcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		path, _ := args["path"].(string)
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		if !w.Unwatch(path) {
			return mcp.NewToolResultError("Not watching: " + path), nil
		}
		return mcp.NewToolResultText("✅ Stopped watching " + path), nil
	}
}

func listWatchesTool() mcp.Tool {
	return mcp.NewTool("list_watches",
		mcp.WithDescription("List all watched paths"),
	)
}

func handleListWatches(w *Watcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		paths := w.List()
		if len(paths) == 0 {
			return mcp.NewToolResultText("No watched paths"), nil
		}
		return mcp.NewToolResultText("Watched paths:\n• " + strings.Join(paths, "\n• ")), nil
	}
}
