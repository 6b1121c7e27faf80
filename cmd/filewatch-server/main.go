// filewatch-server is the stdio tool server that watches filesystem paths
// and pushes a notification for every change.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nselway/toolbridge/internal/watchfs"
)

func main() {
	_ = godotenv.Load()

	s, w, err := watchfs.NewServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup error: %v\n", err)
		os.Exit(1)
	}
	defer w.Close()

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
