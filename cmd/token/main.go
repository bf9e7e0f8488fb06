// token mints a development JWT accepted by the /ws and /api
// endpoints. Production tokens come from the auth provider; this tool
// exists so a local stack can be driven end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"kurator/internal/identity"
	"kurator/internal/models"
)

type noTopics struct{}

func (noTopics) ListTopics() ([]models.ChatTopic, error) { return nil, nil }

func main() {
	user := flag.String("user", "", "User ID (subject)")
	role := flag.String("role", "client", "Role: client or curator")
	roles := flag.String("roles", "", "Comma-separated topic permissions to grant")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" || *user == "" {
		fmt.Println("Usage: JWT_SECRET=... token -user <id> [-role curator] [-roles billing,homework]")
		os.Exit(1)
	}

	svc, err := identity.NewService(context.Background(), identity.Config{Secret: secret}, noTopics{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var granted []string
	if *roles != "" {
		granted = strings.Split(*roles, ",")
	}

	token, err := svc.Issue(models.User{ID: *user, Role: models.Role(*role)}, granted, *expiry)
	if err != nil {
		fmt.Printf("Error minting token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
