//go:build ignore

// Seeds a development admin account and prints a session token for it.
//
//	go run scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hugh/go-magiclink/internal/auth"
	"github.com/hugh/go-magiclink/internal/database"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/pkg/config"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.Store.Driver == config.StoreMemory {
		log.Fatal("seeding the memory store is pointless, set STORE_DRIVER")
	}

	ctx := context.Background()
	logger := util.NewLogger(cfg.Server.Env, "magiclink-seed")

	st, err := database.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close(ctx)

	email := os.Getenv("ADMIN_EMAIL")
	name := os.Getenv("ADMIN_NAME")
	if email == "" {
		email = "admin@example.com"
	}
	if name == "" {
		name = "Admin"
	}

	user, err := store.FindOrCreateUser(ctx, st, email, name)
	if err != nil {
		log.Fatalf("failed to create admin user: %v", err)
	}

	ttl, err := auth.ParseTTL(cfg.JWT.Expiry)
	if err != nil {
		log.Fatalf("invalid JWT_EXPIRY: %v", err)
	}
	sessions, err := auth.NewSessionService(cfg.JWT.Secret, ttl)
	if err != nil {
		log.Fatalf("failed to create session service: %v", err)
	}
	token, err := sessions.GenerateToken(user.ID, user.Email)
	if err != nil {
		log.Fatalf("failed to sign session: %v", err)
	}

	issued, err := magiclink.NewIssuer(st, nil, cfg.Server.PublicBaseURL, logger).Issue(ctx, magiclink.Identity{UserID: user.ID})
	if err != nil {
		log.Fatalf("failed to issue magic link: %v", err)
	}

	fmt.Printf("Admin user ready\n")
	fmt.Printf("ID:         %s\n", user.ID)
	fmt.Printf("Email:      %s\n", user.Email)
	fmt.Printf("Session:    %s\n", token)
	fmt.Printf("Magic link: %s\n", issued.URL)
}
