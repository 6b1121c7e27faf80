// notify-discord is the chat front-end: it keeps a bridge to the reminder
// server, relays fired reminders into a Discord channel, and accepts
// !remind / !reminders / !cancel commands from that channel.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/nselway/toolbridge/internal/bridge"
)

func main() {
	log.Println("notify-discord - reminder chat front-end")

	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	token := os.Getenv("DISCORD_TOKEN")
	channelID := os.Getenv("DISCORD_CHANNEL_ID")
	if token == "" || channelID == "" {
		log.Fatal("DISCORD_TOKEN and DISCORD_CHANNEL_ID environment variables required")
	}
	command := os.Getenv("REMINDER_SERVER")
	if command == "" {
		command = "reminder-server"
	}

	b := bridge.New(bridge.Config{
		Name:        "reminder",
		Command:     command,
		WatchWorker: true,
	})
	b.Start()
	defer b.Stop()

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.ID == s.State.User.ID {
			return
		}
		if m.ChannelID != channelID {
			return
		}
		if reply := handleCommand(b, m.Content); reply != "" {
			if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
				log.Printf("[discord] send failed: %v", err)
			}
		}
	})

	if err := session.Open(); err != nil {
		log.Fatalf("Failed to open Discord connection: %v", err)
	}
	defer session.Close()
	log.Printf("[discord] Connected as %s", session.State.User.Username)

	// Relay fired reminders into the channel.
	go func() {
		for n := range b.Notifications() {
			if _, err := session.ChannelMessageSend(channelID, "🔔 "+n.Status()); err != nil {
				log.Printf("[discord] relay failed: %v", err)
			}
		}
	}()

	log.Println("[main] Running. Press Ctrl+C to stop.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("[main] Shutting down")
}

// handleCommand parses one chat message; returns "" for non-commands.
func handleCommand(b *bridge.Bridge, content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}

	switch fields[0] {
	case "!remind":
		if len(fields) < 3 {
			return "Usage: !remind <minutes> <message>"
		}
		minutes, err := strconv.Atoi(fields[1])
		if err != nil || minutes <= 0 {
			return "Minutes must be a positive number"
		}
		message := strings.Join(fields[2:], " ")
		result, err := b.Request("set_reminder", map[string]any{
			"minutes": minutes,
			"message": message,
		}, 10*time.Second)
		if err != nil {
			return requestErrorReply(err)
		}
		return result.Text()

	case "!reminders":
		result, err := b.Request("list_reminders", nil, 10*time.Second)
		if err != nil {
			return requestErrorReply(err)
		}
		return result.Text()

	case "!cancel":
		if len(fields) != 2 {
			return "Usage: !cancel <reminder-id>"
		}
		result, err := b.Request("cancel_reminder", map[string]any{"task_id": fields[1]}, 10*time.Second)
		if err != nil {
			return requestErrorReply(err)
		}
		return result.Text()
	}
	return ""
}

func requestErrorReply(err error) string {
	switch {
	case errors.Is(err, bridge.ErrNotReady):
		return "⚠ Not connected to the reminder server yet, try again shortly"
	case errors.Is(err, bridge.ErrTimeout):
		return "⚠ The reminder server did not answer in time"
	default:
		return fmt.Sprintf("❌ %v", err)
	}
}
