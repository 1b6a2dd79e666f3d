// Command devtoken creates the development account if needed and prints an
// access token for it.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/services"
)

func main() {
	cli.LoadEnvFile()
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "devtoken:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", cfg.DevUserEmail, "account email")
	username := fs.String("username", cfg.DevUserName, "username for a new account")
	password := fs.String("password", "", "password for a new account (prompted when omitted)")
	currency := fs.String("currency", "", "currency for a new account (default USD)")
	verbose := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	logger := applog.New(applog.Config{
		Level:  applog.ParseLevel(level),
		Format: cfg.LogFormat,
		Output: stderr,
	})

	normalized, err := core.NormalizeEmail(*email)
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	// The password only matters for a new account.
	_, err = res.Store.GetUserByEmail(ctx, normalized)
	switch {
	case errors.Is(err, core.ErrNotFound):
		if *password == "" {
			pw, err := readPassword(stdin, stderr, normalized)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			*password = pw
		}
		if *password == "" {
			*password = cfg.DevUserPassword
		}
	case err != nil:
		return fmt.Errorf("look up %s: %w", normalized, err)
	}

	svc := services.New(services.Deps{
		Store:  res.Store,
		Tokens: auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
	})
	ctx = applog.NewContext(ctx, logger)

	user, token, created, err := svc.Auth.EnsureUser(ctx, services.RegisterInput{
		Username: *username,
		Email:    normalized,
		Password: *password,
		Currency: *currency,
	})
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(stderr, "created user %s (%s)\n", user.Email, user.ID)
	} else {
		fmt.Fprintf(stderr, "found user %s (%s)\n", user.Email, user.ID)
	}
	fmt.Fprintln(stdout, token)
	return nil
}

// readPassword asks for the password of a new account. It prompts without
// echo when stdin is a terminal and reads a single line otherwise. An empty answer means "use the default".
func readPassword(stdin io.Reader, prompt io.Writer, email string) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "Password for new account %s (blank for default): ", email)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
