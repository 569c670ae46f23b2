// Command issue-token prints a bearer token for a quiz user.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/quizsync/internal/config"
	"github.com/stemsi/quizsync/internal/logger"
	"github.com/stemsi/quizsync/internal/service"
)

func main() {
	userID := flag.String("user", "", "User ID to embed in the token (required)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: issue-token -user <id>")
		os.Exit(2)
	}

	token, err := service.NewAuthService(cfg).GenerateToken(*userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	log.Info().Str("user_id", *userID).Dur("expires_in", cfg.JWTExpiry).Msg("Token issued")
	fmt.Println(token)
}
