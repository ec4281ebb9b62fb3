// Command reclock is a command-line client for a reclock server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/obelixia/reclock/pkg/client"
)

const defaultServerURL = "http://localhost:8080"

type globalOptions struct {
	server  string
	token   string
	session string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "reclock",
		Short:         "Read and write records with optimistic version checks",
		SilenceUsage:  true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("RECLOCK_URL", defaultServerURL), "reclock server URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("RECLOCK_TOKEN"), "API key or JWT")
	root.PersistentFlags().StringVar(&opts.session, "session", os.Getenv("RECLOCK_SESSION"), "session ID recorded in the activity log")

	root.AddCommand(
		getCmd(opts),
		listCmd(opts),
		createCmd(opts),
		deleteCmd(opts),
		checkCmd(opts),
		setCmd(opts),
		forceCmd(opts),
		editCmd(opts),
		activityCmd(opts),
		tokenCmd(),
		apiKeyCmd(),
	)
	return root
}

func (o *globalOptions) client() *client.Client {
	clientOpts := []client.Option{client.WithToken(o.token)}
	if o.session != "" {
		clientOpts = append(clientOpts, client.WithSession(o.session))
	}
	return client.New(o.server, clientOpts...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// errConflict is returned after a conflict has been printed so the process
// exits non-zero.
var errConflict = errors.New("version conflict")

func conflictError(cmd *cobra.Command, info any) error {
	if err := printJSON(cmd, map[string]any{"status": "conflict", "conflict": info}); err != nil {
		return err
	}
	return fmt.Errorf("%w: record changed since it was read", errConflict)
}
