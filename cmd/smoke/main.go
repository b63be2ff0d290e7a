// Command smoke signs in to a running identity backend and lists roles and
// users through the console client.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mad-auth/console/internal/apiclient"
	"github.com/mad-auth/console/internal/session"
)

func main() {
	base := os.Getenv("MAD_API_URL")
	if base == "" {
		base = "http://localhost:3001"
	}
	username, password := os.Getenv("MAD_SMOKE_USER"), os.Getenv("MAD_SMOKE_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("set MAD_SMOKE_USER and MAD_SMOKE_PASSWORD")
	}

	sess := session.New(session.NewMemoryStorage())
	client, err := apiclient.New(base, sess,
		apiclient.WithNavigator(apiclient.NavigatorFunc(func(route string) {
			log.Fatalf("backend rejected the session, would navigate to %s", route)
		})))
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, err := client.Initialized(ctx)
	if err != nil {
		log.Fatalf("initialized: %v", err)
	}
	if !ok {
		log.Fatal("backend has no users yet; run the console and initialize it")
	}

	if _, err := client.Login(ctx, apiclient.LoginBody{Username: username, Password: password}); err != nil {
		log.Fatalf("login: %v", err)
	}
	claims, err := session.Decode(sess.AccessToken())
	if err != nil {
		log.Fatalf("decode token: %v", err)
	}

	roles, err := client.ListRoles(ctx, apiclient.Query{Page: 1, Limit: 10})
	if err != nil {
		log.Fatalf("list roles: %v", err)
	}
	users, err := client.ListUsers(ctx, apiclient.Query{Page: 1, Limit: 10})
	if err != nil {
		log.Fatalf("list users: %v", err)
	}
	me, err := client.Profile(ctx)
	if err != nil {
		log.Fatalf("profile: %v", err)
	}
	if me.Username != username && me.Email != username {
		log.Fatalf("profile mismatch: signed in as %q, profile is %q", username, me.Username)
	}

	fmt.Printf("smoke test passed: subject=%s roles=%d users=%d\n",
		claims.Subject, roles.Meta.TotalItems, users.Meta.TotalItems)
}
