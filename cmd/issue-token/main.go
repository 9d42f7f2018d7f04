package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	flag.StringVar(&userID, "user", "", "User UUID (random when empty)")
	flag.StringVar(&role, "role", string(service.RoleStudent), "Role: student or admin")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.Parse()

	id := uuid.New()
	if userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid user id: %v\n", err)
			os.Exit(1)
		}
		id = parsed
	}

	r := service.Role(role)
	if !r.Valid() {
		fmt.Fprintf(os.Stderr, "Invalid role %q\n", role)
		os.Exit(1)
	}

	cfg := config.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Print("JWT secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read secret: %v\n", err)
			os.Exit(1)
		}
		secret = strings.TrimSpace(string(raw))
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT secret must not be empty")
		os.Exit(1)
	}

	if ttl <= 0 {
		ttl = cfg.JWTExpiry
	}

	token, err := service.NewAuthService(secret, ttl).IssueToken(id, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user_id=%s role=%s expires_in=%s\n", id, r, ttl)
	fmt.Println(token)
}
