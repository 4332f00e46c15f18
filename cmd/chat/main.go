package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http/cookiejar"
	"os"
	"strings"

	"stream-chat/internal/auth"
	"stream-chat/internal/config"
	"stream-chat/internal/models"
	"stream-chat/internal/session"
	"stream-chat/internal/transport"
	"stream-chat/pkg/logger"
)

func main() {
	cfg := config.Load()

	jar, err := cookiejar.New(nil)
	if err != nil {
		logger.Fatal("Failed to create cookie jar: %v", err)
	}

	authClient := auth.NewClient(cfg.Client.AuthBaseURL, jar)
	controller := session.NewController(session.Config{
		RealtimeURL:    cfg.Client.RealtimeURL,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		PingInterval:   cfg.Client.PingInterval,
		TypingDebounce: cfg.Client.TypingDebounce,
	}, authClient, transport.NewDialer(jar), session.Hooks{
		OnState: func(state session.ConnState) {
			fmt.Printf("-- connection: %s\n", state)
		},
		OnMessage: func(msg models.Message) {
			printMessage(msg)
		},
		OnNotice: func(text string) {
			fmt.Printf("-- %s\n", text)
		},
		OnTyping: func(text string) {
			if text != "" {
				fmt.Printf("-- %s\n", text)
			}
		},
		OnViewerCount: func(count int) {
			fmt.Printf("-- viewers: %d\n", count)
		},
	})

	reader := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	cred, _ := controller.RestoreSession(ctx)
	if cred != nil {
		fmt.Printf("Welcome back, %s\n", cred.FullName)
	} else {
		cred = login(ctx, controller, reader)
	}

	fmt.Println("Commands: /join <room>, /status, /quit. Anything else is sent as a message.")

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			controller.LeaveOrEndSession(ctx)
			fmt.Println("Bye!")
			return

		case line == "/status":
			printStatus(controller.Snapshot())

		case strings.HasPrefix(line, "/join"):
			roomID := strings.TrimSpace(strings.TrimPrefix(line, "/join"))
			if err := controller.JoinRoom(roomID); err != nil {
				fmt.Printf("-- %v\n", err)
			}

		default:
			controller.ReportTyping(true)
			if err := controller.SendMessage(line); err != nil {
				fmt.Printf("-- send failed: %v\n", err)
			}
		}
	}
}

func login(ctx context.Context, controller *session.Controller, reader *bufio.Reader) *models.Credential {
	for {
		fmt.Print("Student ID: ")
		studentID, err := reader.ReadString('\n')
		if err != nil {
			os.Exit(1)
		}
		fmt.Print("Birth date (DDMMYY): ")
		birthDate, err := reader.ReadString('\n')
		if err != nil {
			os.Exit(1)
		}

		cred, err := controller.Authenticate(ctx, strings.TrimSpace(studentID), strings.TrimSpace(birthDate))
		if err != nil {
			fmt.Printf("Login failed: %v\n", err)
			continue
		}
		fmt.Printf("Hello, %s\n", cred.FullName)
		return cred
	}
}

func printMessage(msg models.Message) {
	if msg.System {
		fmt.Printf("  * %s\n", msg.Body)
		return
	}
	fmt.Printf("  [%s] %s: %s\n", msg.Timestamp, msg.Username, msg.Body)
}

func printStatus(snap session.Snapshot) {
	fmt.Printf("state=%s viewers=%d messages=%d", snap.State, snap.ViewerCount, snap.MessageCount)
	if snap.Membership != nil {
		fmt.Printf(" room=%s", snap.Membership.RoomID)
	}
	if snap.RoundTripMs >= 0 {
		fmt.Printf(" ping=%dms", snap.RoundTripMs)
	} else {
		fmt.Print(" ping=-")
	}
	fmt.Println()
}
