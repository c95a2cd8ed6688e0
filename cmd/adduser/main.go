// Command adduser creates an account directly in the database, for bootstrapping
// the first administrator.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"budgettracker/internal/cli"
	"budgettracker/internal/config"
	"budgettracker/internal/core"
	"budgettracker/internal/log"
)

func main() {
	var opts options
	pflag.StringVarP(&opts.username, "user", "u", "", "login name (required)")
	pflag.StringVarP(&opts.password, "password", "p", "", "password; prompted for when omitted")
	pflag.StringVarP(&opts.name, "name", "n", "", "full name (defaults to the login name)")
	pflag.StringVarP(&opts.email, "email", "e", "", "email address (defaults to <user>@localhost)")
	pflag.StringVarP(&opts.role, "role", "r", string(core.RoleUser), "user, manager or admin")
	pflag.StringVar(&opts.dbPath, "db", "", "SQLite path (defaults to SQLITE_DB_PATH)")
	pflag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	if err := run(logger, opts); err != nil {
		fmt.Fprintln(os.Stderr, "adduser:", err)
		os.Exit(1)
	}
}

type options struct {
	username string
	password string
	name     string
	email    string
	role     string
	dbPath   string
}

func run(logger *log.Logger, opts options) error {
	if opts.username == "" {
		pflag.Usage()
		return errors.New("--user is required")
	}
	if opts.name == "" {
		opts.name = opts.username
	}
	if opts.email == "" {
		opts.email = opts.username + "@localhost"
	}
	role, err := core.ParseRole(opts.role)
	if err != nil {
		return err
	}

	password := opts.password
	if password == "" {
		if password, err = readPassword(); err != nil {
			return err
		}
	}

	cfg := config.Load()
	if opts.dbPath != "" {
		cfg.SQLiteDBPath = opts.dbPath
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Tokens are never issued here, so the signing secret is irrelevant.
	users, _, _ := cli.NewServices(cfg, repo, nil, logger)
	u, err := users.Create(context.Background(), core.NewUser{
		Name:     opts.name,
		Email:    opts.email,
		Username: opts.username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created user %d (%s, %s)\n", u.ID, u.Username, u.Role)
	return nil
}

// readPassword prompts twice on a terminal, or reads one line from piped stdin.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(first), nil
}
