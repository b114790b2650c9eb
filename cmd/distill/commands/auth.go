package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/distill/internal/app"
)

// authCommand returns the 'auth' subcommand for managing the upstream API key.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the upstream API key",
		Commands: []*cli.Command{
			authSetKeyCommand(),
			authClearKeyCommand(),
			authStatusCommand(),
		},
	}
}

func authSetKeyCommand() *cli.Command {
	return &cli.Command{
		Name:   "set-key",
		Usage:  "Save an API key to the configured storage",
		Action: authSetKeyAction,
	}
}

func authClearKeyCommand() *cli.Command {
	return &cli.Command{
		Name:   "clear-key",
		Usage:  "Remove the API key from the configured storage",
		Action: authClearKeyAction,
	}
}

func authStatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show where credentials come from and whether a key is stored",
		Action: authStatusAction,
	}
}

// writableKeyStore opens the configured key store, rejecting env storage.
func writableKeyStore(cmd *cli.Command) (app.APIKeyStore, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Auth.Storage == app.CredentialStorageEnv {
		return nil, fmt.Errorf("cannot change the key with env storage (read-only). Set %s or configure file or keyring storage", cfg.Auth.EnvVar)
	}

	store, err := cfg.NewKeyStore(os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}
	return store, nil
}

func authSetKeyAction(ctx context.Context, cmd *cli.Command) error {
	store, err := writableKeyStore(cmd)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	key, err := readKey(ctx, cmd.Root().Reader, out)
	if err != nil {
		return err
	}
	if key == "" {
		return errors.New("API key cannot be empty")
	}

	if err := store.Write(ctx, key); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	fmt.Fprintln(out, "API key saved to configured storage")
	return nil
}

func authClearKeyAction(ctx context.Context, cmd *cli.Command) error {
	store, err := writableKeyStore(cmd)
	if err != nil {
		return err
	}

	// Clear key via empty string write to maintain storage abstraction
	if err := store.Write(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear key: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, "API key removed from configured storage")
	return nil
}

func authStatusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.Root().Writer
	if cfg.Auth.ClientID != "" {
		fmt.Fprintf(out, "OAuth2 client credentials (client %s, token URL %s)\n", cfg.Auth.ClientID, cfg.Auth.TokenURL)
		return nil
	}

	store, err := cfg.NewKeyStore(os.Environ)
	if err != nil {
		return fmt.Errorf("failed to create key store: %w", err)
	}
	key, err := store.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}

	state := "not set"
	if key != "" {
		state = "set (" + maskKey(key) + ")"
	}
	fmt.Fprintf(out, "API key in %s storage: %s\n", cfg.Auth.Storage, state)
	return nil
}

// maskKey keeps only the last four characters of key.
func maskKey(key string) string {
	const visible = 4
	r := []rune(key)
	if len(r) <= visible {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-visible) + string(r[len(r)-visible:])
}

// readKey prompts on a terminal, otherwise reads the first line of in.
func readKey(ctx context.Context, in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		key, err := readSecureInput(ctx, f, out, "Enter API key: ")
		return strings.TrimSpace(key), err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	defer fmt.Fprintln(out)

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(in.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
