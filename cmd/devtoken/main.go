// Command devtoken mints an access token for local testing against a server
// started with the same JWT_SIGNING_KEY.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "fedlearn/internal/jwt_token"
	"fedlearn/internal/platform/config"
	id "fedlearn/pkg/domain"
)

func main() {
	user := flag.Int64("user", 0, "numeric user id to embed in the token")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Environment != "dev" {
		fmt.Fprintln(os.Stderr, "devtoken only runs with FEDLEARN_ENV=dev")
		os.Exit(1)
	}

	svc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, jwttoken.Issuer, jwttoken.Audience)
	token, err := svc.GenerateAccessToken(id.UserID(*user), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
