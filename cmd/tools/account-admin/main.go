// cmd/tools/account-admin/main.go
//
// Operational CLI for the account table: provision accounts and look
// them up without going through the HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"heritage-api/internal/accounts"
	"heritage-api/internal/common/config"
	"heritage-api/internal/common/database"
)

func main() {
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	findCmd := flag.NewFlagSet("find", flag.ExitOnError)

	emailCreate := createCmd.String("email", "", "Email address for the new account")

	emailFind := findCmd.String("email", "", "Email address to look up")
	keyFind := findCmd.String("key", "", "API key to look up")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		createCmd.Parse(os.Args[2:])
		if !accounts.IsValidEmail(*emailCreate) {
			fmt.Println("Error: a valid -email is required for create.")
			createCmd.Usage()
			os.Exit(1)
		}
		runCreate(*emailCreate)

	case "find":
		findCmd.Parse(os.Args[2:])
		if *emailFind == "" && *keyFind == "" {
			fmt.Println("Error: one of -email or -key is required for find.")
			findCmd.Usage()
			os.Exit(1)
		}
		runFind(*emailFind, *keyFind)

	case "generate-key":
		fmt.Println(accounts.GenerateKey())

	default:
		help()
		os.Exit(1)
	}
}

func runCreate(email string) {
	repo, cleanup := openRepository()
	defer cleanup()
	ctx := context.Background()

	existing, err := repo.FindByEmail(ctx, email)
	fatalOn(err)
	if existing != nil {
		fmt.Printf("Account already exists for %s\n", email)
		printAccount(existing)
		return
	}

	account, err := repo.CreateAccount(ctx, email)
	fatalOn(err)
	fmt.Printf("Created account for %s\n", email)
	printAccount(account)
}

func runFind(email, key string) {
	repo, cleanup := openRepository()
	defer cleanup()
	ctx := context.Background()

	var account *accounts.Account
	var err error
	if email != "" {
		account, err = repo.FindByEmail(ctx, email)
	} else {
		account, err = repo.FindByAPIKey(ctx, key)
	}
	fatalOn(err)

	if account == nil {
		fmt.Println("No matching account.")
		os.Exit(1)
	}
	printAccount(account)
}

func openRepository() (*accounts.Repository, func()) {
	cfg, err := config.Load()
	fatalOn(err)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	fatalOn(err)

	return accounts.NewRepository(pg.DB), func() { pg.Close() }
}

func printAccount(account *accounts.Account) {
	encoded, err := json.MarshalIndent(account, "", "  ")
	fatalOn(err)
	fmt.Println(string(encoded))
}

func fatalOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func help() {
	fmt.Println(`Usage:
  account-admin create -email <address>     Provision a new enabled account
  account-admin find -email <address>       Look up an account by email
  account-admin find -key <api key>         Look up an account by API key
  account-admin generate-key                Print a fresh API key`)
}
