// Command tokengen mints a bearer token for a terminal or service using the
// same jwt settings as the API server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"qr-payment-ledger/config"
	"qr-payment-ledger/internal/service"
)

func main() {
	subject := flag.String("subject", "", "token subject, recorded as redeemed_by on redemptions")
	expiry := flag.Duration("expiry", 0, "override jwt.expiry")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "tokengen: -subject is required")
		os.Exit(2)
	}

	cfg, err := config.Load(os.Getenv("SPL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "tokengen: jwt.secret is not set")
		os.Exit(1)
	}

	ttl := cfg.JWT.Expiry
	if *expiry > 0 {
		ttl = *expiry
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, ttl, cfg.JWT.Issuer).Generate(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
