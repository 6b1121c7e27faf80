// remindctl is the command-line front-end for the reminder server. It keeps
// one bridge to the worker process and runs a prompt loop; reminder
// notifications print asynchronously between prompts and are journaled to
// SQLite.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nselway/toolbridge/internal/bridge"
	"github.com/nselway/toolbridge/internal/history"
	"github.com/nselway/toolbridge/internal/rpc"
)

func main() {
	configPath := flag.String("config", "", "bridge config YAML (optional)")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("[config] Loaded .env file")
	}

	cfg := loadBridgeConfig(*configPath)

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	journal, err := history.Open(filepath.Join(statePath, "notifications.db"))
	if err != nil {
		log.Printf("[main] Warning: notification journal disabled: %v", err)
		journal = nil
	} else {
		defer journal.Close()
	}

	b := bridge.New(cfg)
	b.Start()
	defer b.Stop()

	// Print pushes as they arrive, between prompts.
	go func() {
		for n := range b.Notifications() {
			printBanner("🔔 REMINDER", n.Status())
			fmt.Print("Choice > ")
			if journal != nil {
				if err := journal.Append(n); err != nil {
					log.Printf("[main] journal write failed: %v", err)
				}
			}
		}
	}()

	waitReady(b, 10*time.Second)

	fmt.Println("==================================================")
	fmt.Println("REMINDER MANAGER")
	fmt.Println("==================================================")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println()
		fmt.Println("1. Set new reminder")
		fmt.Println("2. List active reminders")
		fmt.Println("3. Cancel a reminder")
		fmt.Println("4. Notification history")
		fmt.Println("5. Exit")
		fmt.Print("Choice > ")

		if !scanner.Scan() {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			setReminder(b, scanner)
		case "2":
			listReminders(b)
		case "3":
			cancelReminder(b, scanner)
		case "4":
			showHistory(journal)
		case "5":
			fmt.Println("Goodbye! 👋")
			return
		}
	}
}

// loadBridgeConfig reads the YAML config if given, otherwise builds one from
// the environment.
func loadBridgeConfig(path string) bridge.Config {
	if path != "" {
		cfg, err := bridge.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if cfg.Name == "" {
			cfg.Name = "reminder"
		}
		return cfg
	}

	command := os.Getenv("REMINDER_SERVER")
	if command == "" {
		command = "reminder-server"
	}
	return bridge.Config{
		Name:        "reminder",
		Command:     command,
		WatchWorker: true,
	}
}

func waitReady(b *bridge.Bridge, budget time.Duration) {
	fmt.Println("Connecting to reminder server...")
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if b.IsReady() {
			fmt.Println("✅ Connected")
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println("⚠ Not connected yet — reconnecting in the background")
}

func setReminder(b *bridge.Bridge, scanner *bufio.Scanner) {
	fmt.Print("Minutes from now > ")
	if !scanner.Scan() {
		return
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || minutes <= 0 {
		printBanner("ERROR", "Minutes must be a positive number")
		return
	}

	fmt.Print("Reminder message > ")
	if !scanner.Scan() {
		return
	}
	message := strings.TrimSpace(scanner.Text())

	result, err := b.Request("set_reminder", map[string]any{
		"minutes": minutes,
		"message": message,
	}, 10*time.Second)
	if err != nil {
		printRequestError(err)
		return
	}
	printBanner("SUCCESS", strings.TrimPrefix(result.Text(), "✅ "))
}

func listReminders(b *bridge.Bridge) {
	result, err := b.Request("list_reminders", nil, 10*time.Second)
	if err != nil {
		printRequestError(err)
		return
	}
	printBanner("ACTIVE REMINDERS", result.Text())
}

func cancelReminder(b *bridge.Bridge, scanner *bufio.Scanner) {
	fmt.Print("Reminder ID to cancel > ")
	if !scanner.Scan() {
		return
	}
	id := strings.TrimSpace(scanner.Text())

	result, err := b.Request("cancel_reminder", map[string]any{"task_id": id}, 10*time.Second)
	if err != nil {
		printRequestError(err)
		return
	}
	printBanner("SUCCESS", strings.TrimPrefix(result.Text(), "✅ "))
}

func showHistory(journal *history.Log) {
	if journal == nil {
		printBanner("ERROR", "Notification journal is disabled")
		return
	}
	entries, err := journal.Recent(20)
	if err != nil {
		printBanner("ERROR", err.Error())
		return
	}
	if len(entries) == 0 {
		printBanner("HISTORY", "No notifications received yet")
		return
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %s\n", e.ReceivedAt.Local().Format("2006-01-02 15:04:05"), e.Status)
	}
	printBanner("HISTORY", strings.TrimRight(b.String(), "\n"))
}

func printRequestError(err error) {
	var remote *rpc.RemoteError
	switch {
	case errors.Is(err, bridge.ErrNotReady):
		printBanner("ERROR", "Not connected to server (reconnecting in the background)")
	case errors.Is(err, bridge.ErrTimeout):
		printBanner("ERROR", "Request timed out")
	case errors.As(err, &remote):
		printBanner("ERROR", remote.Message)
	default:
		printBanner("ERROR", err.Error())
	}
}

func printBanner(title, body string) {
	fmt.Println()
	fmt.Println("==================================================")
	fmt.Println(title)
	fmt.Println("==================================================")
	fmt.Println(body)
	fmt.Println("==================================================")
}
