// testmail sends a test email to one stored user through the configured
// SMTP transport; handy for verifying mail settings before relying on
// alerts.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/config"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/notify"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo/postgres"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo/sqlite"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	var (
		store repo.Store
		err   error
	)
	if cfg.DatabaseURL != "" {
		store, err = postgres.New(ctx, cfg.DatabaseURL)
	} else {
		store, err = sqlite.New(ctx, cfg.SQLitePath)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "store:", err)
		os.Exit(1)
	}
	defer store.Close()

	users, err := store.ListUsers(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list users:", err)
		os.Exit(1)
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		os.Exit(1)
	}

	fmt.Println("\nUsers:")
	for _, u := range users {
		fmt.Printf("  %d: %s <%s>\n", u.ID, u.Name, u.Email)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nEnter user ID to send test email: ")
	idLine, _ := reader.ReadString('\n')
	id, err := strconv.ParseInt(strings.TrimSpace(idLine), 10, 64)
	if err != nil {
		fmt.Println("Invalid user ID.")
		os.Exit(1)
	}
	var email string
	for _, u := range users {
		if u.ID == id {
			email = u.Email
		}
	}
	if email == "" {
		fmt.Println("Invalid user ID.")
		os.Exit(1)
	}

	const (
		defSubject = "[PassieUptimeRobot] Test email"
		defBody    = "This is a test email from PassieUptimeRobot."
	)
	fmt.Printf("Subject [%s]: ", defSubject)
	subject, _ := reader.ReadString('\n')
	if subject = strings.TrimSpace(subject); subject == "" {
		subject = defSubject
	}
	fmt.Printf("Message [%s]: ", defBody)
	body, _ := reader.ReadString('\n')
	if body = strings.TrimSpace(body); body == "" {
		body = defBody
	}

	sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	if sender == nil {
		fmt.Fprintln(os.Stderr, "SMTP_HOST is not configured.")
		os.Exit(1)
	}
	if err := sender.Send(email, subject, body); err != nil {
		fmt.Fprintln(os.Stderr, "send:", err)
		os.Exit(1)
	}
	fmt.Println("Done.")
}
