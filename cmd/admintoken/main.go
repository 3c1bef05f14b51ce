// Package main mints an admin token for the retention endpoints.
//
// It reads the same configuration as the server, so the token is signed with
// the key in the server's data path (created on first use).
//
// Usage:
//
//	ADMIN_SUBJECT=ops go run ./cmd/admintoken --data-path ~/podropsquare
package main

import (
	"fmt"
	"os"

	"github.com/punkouter26/podropsquare-server/internal/auth"
	"github.com/punkouter26/podropsquare-server/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(key, cfg.Auth.AdminTokenDuration)
	if err != nil {
		return err
	}

	subject := os.Getenv("ADMIN_SUBJECT")
	if subject == "" {
		subject = os.Getenv("USER")
	}
	if subject == "" {
		subject = "operator"
	}

	token, expires, err := tokens.Issue(subject)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "subject=%s expires=%s\n", subject, expires.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Println(token)
	return nil
}
