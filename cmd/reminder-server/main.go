// reminder-server is the stdio tool server behind the reminder clients.
// It schedules delayed notifications and pushes them to whoever is connected
// when they fire.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nselway/toolbridge/internal/reminder"
)

func main() {
	_ = godotenv.Load()

	s, reg := reminder.NewServer()
	defer reg.StopAll()

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
