package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/orbitl/email-tracker/internal/config"
	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/signer"
	"github.com/orbitl/email-tracker/internal/store/postgres"
	"github.com/orbitl/email-tracker/internal/tracklink"

	_ "github.com/lib/pq"
)

// Generates a pixel-only tracking snippet for campaigns sent outside the
// tracker, registering the message so opens attribute to it.
func main() {
	campaign := flag.String("campaign", "Manual Campaign", "campaign name recorded with the message")
	dryRun := flag.Bool("dry-run", false, "print the snippet without registering the message")
	flag.Parse()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Tracking.SigningSecret == "" || cfg.Tracking.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "TRACK_SECRET and APP_BASE are required")
		os.Exit(1)
	}

	enc := tracklink.NewEncoder(cfg.Tracking.BaseURL, signer.New(cfg.Tracking.SigningSecret))
	id, snippet := enc.Snippet()

	if !*dryRun {
		if cfg.Database.URL == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL is required (or pass -dry-run)")
			os.Exit(1)
		}
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		now := time.Now().UTC()
		msg := &domain.Message{
			ID:      id,
			ToEmail: "manual@campaign.com",
			Subject: *campaign,
			SentAt:  now,
			Metadata: domain.MessageMetadata{
				Campaign: *campaign,
				Manual:   true,
				SentAt:   now.Format(time.RFC3339),
			},
		}
		if err := postgres.New(db).InsertMessage(ctx, msg); err != nil {
			fmt.Fprintf(os.Stderr, "register message: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Campaign:   %s\n", *campaign)
	fmt.Printf("Message ID: %s\n\n", id)
	fmt.Println("Paste this at the end of the email HTML body:")
	fmt.Println(snippet)
}
