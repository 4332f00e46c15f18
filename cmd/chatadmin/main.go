package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"stream-chat/internal/admin"
	"stream-chat/internal/auth"
	"stream-chat/pkg/logger"
)

func main() {
	baseURL := flag.String("base", envOrDefault("AUTH_BASE_URL", "http://localhost:8080"), "backend base URL")
	studentID := flag.String("student", os.Getenv("ADMIN_STUDENT_ID"), "admin student id")
	birthDate := flag.String("birth", os.Getenv("ADMIN_BIRTH_DATE"), "admin birth date (DDMMYY)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()

	authClient := auth.NewClient(*baseURL, nil)
	cred, err := authClient.Login(ctx, *studentID, *birthDate)
	if err != nil {
		logger.Fatal("Admin login failed: %v", err)
	}

	client := admin.NewClient(*baseURL, cred.AccessToken)

	switch args[0] {
	case "stats":
		stats, err := client.DashboardStats(ctx)
		exitOnError(err)
		printJSON(stats)

	case "users":
		page := 1
		if len(args) > 1 {
			page, _ = strconv.Atoi(args[1])
		}
		users, err := client.ListUsers(ctx, page, 50)
		exitOnError(err)
		printJSON(users)

	case "online":
		online, err := client.OnlineUsers(ctx)
		exitOnError(err)
		printJSON(online)

	case "banned":
		banned, err := client.BannedUsers(ctx)
		exitOnError(err)
		printJSON(banned)

	case "status":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		status, err := client.UserStatus(ctx, args[1])
		exitOnError(err)
		printJSON(status)

	case "ban":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		reason := strings.Join(args[2:], " ")
		exitOnError(client.BanUser(ctx, args[1], reason))
		fmt.Printf("banned %s\n", args[1])

	case "unban":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		exitOnError(client.UnbanUser(ctx, args[1]))
		fmt.Printf("unbanned %s\n", args[1])

	case "buffer":
		stats, err := client.BufferStats(ctx)
		exitOnError(err)
		printJSON(stats)

	case "flush":
		flushed, err := client.FlushMessages(ctx)
		exitOnError(err)
		fmt.Printf("flushed %d messages\n", flushed)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: chatadmin [flags] <command>

commands:
  stats                 dashboard statistics
  users [page]          list users (50 per page)
  online                currently connected users
  banned                banned users
  status <studentId>    one user's record and online state
  ban <studentId> [reason...]
  unban <studentId>
  buffer                message buffer statistics
  flush                 flush buffered messages to storage`)
	flag.PrintDefaults()
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatal("Failed to render response: %v", err)
	}
	fmt.Println(string(data))
}

func exitOnError(err error) {
	if err != nil {
		logger.Fatal("%v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
