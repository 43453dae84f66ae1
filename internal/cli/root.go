// Package cli implements esignctl, the command-line client for the
// e-signature API.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/esign-platform/internal/apiclient"
	"github.com/upb/esign-platform/internal/observability"
	"github.com/upb/esign-platform/internal/session"
	"github.com/upb/esign-platform/internal/storage"
)

// Environment variables read for flag defaults.
const (
	EnvAPIURL    = "ESIGN_API_URL"
	EnvStatePath = "ESIGN_STATE"
	EnvPassword  = "ESIGN_PASSWORD"
)

// DefaultAPIURL is used when neither --api nor ESIGN_API_URL is set.
const DefaultAPIURL = "http://localhost:8080"

type options struct {
	apiURL    string
	statePath string
	format    string
	debug     bool
}

// runtime is what a command needs to talk to the API.
type runtime struct {
	client  *apiclient.Client
	session *session.Store
	out     *printer
	logger  *zap.Logger
}

// NewRootCommand builds the esignctl command tree.
func NewRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "esignctl",
		Short: "Command-line client for the e-signature platform",
		Long: `esignctl talks to the e-signature API: sign in, pick an organization,
create documents and invite signers.

The session token and the current organization are kept in a state file
(default ~/.esign/state.json) and sent with every request.

Examples:
  esignctl login --email ana@example.com --password s3cret
  esignctl orgs list
  esignctl orgs use acme
  esignctl documents create "Master services agreement"
  esignctl invite 6f1c... bob@example.com`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.apiURL, "api", envOr(EnvAPIURL, DefaultAPIURL), "API base URL (env "+EnvAPIURL+")")
	flags.StringVar(&o.statePath, "state", envOr(EnvStatePath, defaultStatePath()), "session state file (env "+EnvStatePath+")")
	flags.StringVarP(&o.format, "format", "o", "text", "output format: text, json or yaml")
	flags.BoolVar(&o.debug, "debug", false, "log HTTP traffic to stderr")

	root.AddCommand(
		newLoginCmd(o),
		newRegisterCmd(o),
		newGoogleCmd(o),
		newLogoutCmd(o),
		newMeCmd(o),
		newOrgsCmd(o),
		newDocumentsCmd(o),
		newInviteCmd(o),
		newInvitationCmd(o),
		newRouteCmd(o),
		newActivityCmd(o),
	)

	return root
}

// Execute runs esignctl with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *options) connect(cmd *cobra.Command) (*runtime, error) {
	out, err := newPrinter(o.format, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if o.debug {
		if logger, err = observability.NewLogger("debug", "console"); err != nil {
			return nil, err
		}
	}

	sess := session.NewStore(storage.NewFileStore(o.statePath))
	sess.Initialize()

	return &runtime{
		client:  apiclient.New(o.apiURL, sess, apiclient.WithLogger(logger)),
		session: sess,
		out:     out,
		logger:  logger,
	}, nil
}

// requireSession fails early when no token is stored.
func (rt *runtime) requireSession() error {
	if !rt.session.IsAuthenticated() {
		return fmt.Errorf("not signed in (run esignctl login)")
	}
	return nil
}

// commandError renders API failures with the server's message.
type commandError struct {
	prefix string
	err    error
}

func (e *commandError) Error() string {
	return apiclient.FormatError(e.prefix, e.err)
}

func (e *commandError) Unwrap() error {
	return e.err
}

func fail(prefix string, err error) error {
	return &commandError{prefix: prefix, err: err}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".esign", "state.json")
	}
	return filepath.Join(home, ".esign", "state.json")
}
