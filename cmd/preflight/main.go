// preflight prints a quick report of the environment the robot would
// start with, flagging settings that silently disable features.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	seeds := strings.TrimSpace(os.Getenv("TARGET_URLS"))
	mail := strings.TrimSpace(os.Getenv("MAIL_ENABLED"))
	smtp := strings.TrimSpace(os.Getenv("SMTP_HOST"))
	slack := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK"))

	if db == "" {
		warn("DATABASE_URL empty — falling back to the sqlite file (SQLITE_PATH, default passie.db).")
	} else {
		ok("DATABASE_URL present")
	}

	if seeds == "" {
		warn("TARGET_URLS empty — no targets will be seeded; register via POST /api/targets.")
	} else {
		n := 0
		for _, s := range strings.Split(seeds, ",") {
			if strings.TrimSpace(s) != "" {
				n++
			}
		}
		ok(fmt.Sprintf("TARGET_URLS has %d url(s)", n))
	}

	if !strings.EqualFold(mail, "true") {
		warn("MAIL_ENABLED is not 'true' — alert decisions will be recorded but no mail goes out.")
	} else if smtp == "" {
		warn("MAIL_ENABLED=true but SMTP_HOST empty — mail cannot be delivered.")
	} else {
		ok("SMTP_HOST=" + smtp)
	}

	if slack == "" {
		warn("SLACK_WEBHOOK empty — no Slack mirror of alerts.")
	} else {
		ok("SLACK_WEBHOOK present")
	}

	ok("preflight passed")
}
