package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer builds the reminder MCP server and its registry. Fired reminders
// go out as "notifications/status" pushes to connected clients; if no client
// is connected the notification is dropped (reminders are best-effort).
func NewServer() (*server.MCPServer, *Registry) {
	s := server.NewMCPServer(
		"reminder-server",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	reg := NewRegistry(func(message string) {
		s.SendNotificationToAllClients("notifications/status", map[string]any{
			"status": "⏰ Reminder: " + message,
		})
	})

	s.AddTool(setReminderTool(), handleSetReminder(reg))
	s.AddTool(cancelReminderTool(), handleCancelReminder(reg))
	s.AddTool(listRemindersTool(), handleListReminders(reg))

	return s, reg
}

func setReminderTool() mcp.Tool {
	return mcp.NewTool("set_reminder",
		mcp.WithDescription("Set a reminder for X minutes from now"),
		mcp.WithNumber("minutes",
			mcp.Required(),
			mcp.Description("Minutes from now (must be positive)"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Reminder message"),
		),
	)
}

func handleSetReminder(reg *Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		minutes, ok := args["minutes"].(float64)
		if !ok {
			return mcp.NewToolResultError("minutes is required and must be a number"), nil
		}
		message, _ := args["message"].(string)

		id, err := reg.Add(time.Duration(minutes)*time.Minute, message)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"✅ Reminder set! Will notify in %d minutes\nID: %s", int(minutes), id)), nil
	}
}

func cancelReminderTool() mcp.Tool {
	return mcp.NewTool("cancel_reminder",
		mcp.WithDescription("Cancel a specific reminder"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Reminder ID to cancel"),
		),
	)
}

func handleCancelReminder(reg *Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		id, _ := args["task_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		if !reg.Cancel(id) {
			return mcp.NewToolResultError("Reminder not found: " + id), nil
		}
		return mcp.NewToolResultText("✅ Cancelled reminder: " + id), nil
	}
}

func listRemindersTool() mcp.Tool {
	return mcp.NewTool("list_reminders",
		mcp.WithDescription("List all active reminders"),
	)
}

func handleListReminders(reg *Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(FormatList(reg.List())), nil
	}
}

// FormatList renders List output the way the clients expect it.
func FormatList(entries []Entry) string {
	if len(entries) == 0 {
		return "No active reminders"
	}
	var b strings.Builder
	b.WriteString("Active reminders:")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n• %s (%s): %s", e.ID, FormatRemaining(e.Remaining), e.Message)
	}
	return b.String()
}

// FormatRemaining renders a remaining duration in the rough human units the
// original clients print.
func FormatRemaining(d time.Duration) string {
	switch minutes := int(d.Minutes()); {
	case minutes < 1:
		return "due any moment"
	case minutes == 1:
		return "due in 1 minute"
	default:
		return fmt.Sprintf("due in %d minutes", minutes)
	}
}
