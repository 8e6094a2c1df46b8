package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"connectorctl/internal/authform"
	"connectorctl/internal/cli"
	"connectorctl/internal/drafts"
	"connectorctl/internal/filewatch"
	"connectorctl/internal/formatting"
	"connectorctl/pkg/authconfig"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newAuthCmd(flags *cli.CommandFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Edit and check connector authentication settings",
		Long: `Edit and check the authentication settings of connectors.

A connector authenticates in one of three ways:
  auto    the gateway negotiates authentication itself
  apiKey  a static key, supplied by an admin or by every user
  oauth   an OAuth client; users authorize with 'connectorctl authorize'

Examples:
  connectorctl auth validate github-auth.yaml
  connectorctl auth validate github-auth.yaml --watch
  connectorctl auth edit github
  connectorctl auth edit github --type apiKey --set source=admin --set key=sk-123`,
	}

	cmd.AddCommand(newAuthValidateCmd(flags))
	cmd.AddCommand(newAuthEditCmd(flags))
	return cmd
}

func newAuthValidateCmd(flags *cli.CommandFlags) *cobra.Command {
	var (
		watch       bool
		redirectURL string
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an authentication config file",
		Long: `Check an authentication config file without contacting the gateway.

The file holds either a bare config:

  type: apiKey
  source: admin
  key: sk-123

or a whole connector document with an auth: section. Only the fields of
the selected type are checked. For a valid OAuth config the requested
scopes and the provider consent URL are shown; pass --redirect-url to
include the gateway's callback in it.

With --watch the file is checked again every time it is saved, until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := newPrinter(cmd, flags)
			if err != nil {
				return err
			}

			file := args[0]
			check := func() (formatting.ValidationResult, error) {
				result := validateFile(file, redirectURL)
				if err := printer.Print(result); err != nil {
					return result, err
				}
				return result, nil
			}

			result, err := check()
			if err != nil {
				return err
			}
			if !watch {
				return validationError(result)
			}

			ctx, stop := interruptible(cmd)
			defer stop()
			return watchFile(ctx, file, func() {
				if _, err := check(); err != nil {
					printer.Warn("Failed to print: %v", err)
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Check again on every save")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "Callback URL to put in the OAuth consent preview")
	return cmd
}

// validateFile never fails; read and decode problems are reported in the
// result.
func validateFile(path, redirectURL string) formatting.ValidationResult {
	result := formatting.ValidationResult{File: path}

	c, err := readAuthConfig(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	errs := authconfig.Validate(c)
	result.Type = authconfig.Wrap(c).Type()
	result.Valid = errs.Valid()
	if !result.Valid {
		result.Errors = errs
		return result
	}
	if o, ok := authconfig.Wrap(c).Config.(authconfig.OAuth); ok {
		result.Scopes = o.Scopes()
		result.ConsentURL = o.ConsentURL(redirectURL, consentPreviewState)
	}
	return result
}

// consentPreviewState stands in for the flow id the gateway puts in the
// state parameter.
const consentPreviewState = "preview"

func validationError(r formatting.ValidationResult) error {
	switch {
	case r.Error != "":
		return &cli.UsageError{Reason: fmt.Errorf("%s: %s", r.File, r.Error)}
	case !r.Valid:
		return fmt.Errorf("%s: %w", r.File, r.Errors)
	}
	return nil
}

// readAuthConfig decodes a bare auth config, or the auth: section of a
// connector document.
func readAuthConfig(path string) (authconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Auth json.RawMessage `json:"auth"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var env authconfig.Envelope
	if len(doc.Auth) > 0 {
		err = json.Unmarshal(doc.Auth, &env)
	} else {
		err = yaml.Unmarshal(data, &env)
	}
	if err != nil {
		return nil, err
	}
	return env.Config, nil
}

func watchFile(ctx context.Context, path string, onChange func()) error {
	w, err := filewatch.New(filewatch.Config{Files: []string{path}, OnChange: onChange})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	<-ctx.Done()
	return nil
}

type editOptions struct {
	typ   string
	set   []string
	reset bool
}

func newAuthEditCmd(flags *cli.CommandFlags) *cobra.Command {
	var opts editOptions

	cmd := &cobra.Command{
		Use:   "edit <connector-id>",
		Short: "Edit a connector's authentication settings",
		Long: `Edit a connector's authentication settings.

Without --type or --set an interactive editor starts. Each change is
validated immediately and kept as a draft, so editing can be resumed
later; secrets in drafts are stored in the OS keyring. 'submit' stores the
settings on the gateway once every field of the selected type is valid.

With --type and --set the changes are applied to the draft and submitted
at once. Invalid settings are reported and the command exits with code 4.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.editAuth(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.typ, "type", "", "Authentication type: auto, apiKey or oauth")
	cmd.Flags().StringArrayVar(&opts.set, "set", nil, "Set a field, as field=value (repeatable)")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Ignore a saved draft and start from the gateway's settings")
	return cmd
}

func (s *session) editAuth(cmd *cobra.Command, connectorID string, opts editOptions) error {
	ctx := cmd.Context()
	services := s.app.Services()

	connector, err := services.Backend.GetConnector(ctx, connectorID)
	if err != nil {
		return err
	}

	draft := authconfig.NewDraft(connector.Auth.Config)
	if opts.reset {
		if err := services.Drafts.Delete(connectorID); err != nil && !errors.Is(err, drafts.ErrNotFound) {
			return err
		}
	} else {
		saved, err := services.Drafts.Load(connectorID)
		switch {
		case err == nil:
			s.printer.Info("Resuming the saved draft of %s (use --reset to start over)", connectorID)
			draft = saved
		case !errors.Is(err, drafts.ErrNotFound):
			s.printer.Warn("Ignoring the saved draft: %v", err)
		}
	}

	submit := func(ctx context.Context, c authconfig.Config) error {
		updated := *connector
		updated.Auth = authconfig.Wrap(c)
		_, err := services.Backend.UpdateConnector(ctx, updated)
		return err
	}

	interactive := opts.typ == "" && len(opts.set) == 0
	if !interactive {
		editor := authform.New(connectorID, draft, nil, cmd.ErrOrStderr(), services.Drafts, submit)
		if opts.typ != "" {
			if err := editor.SetType(opts.typ); err != nil {
				return &cli.UsageError{Reason: err}
			}
		}
		for _, kv := range opts.set {
			field, value, ok := strings.Cut(kv, "=")
			if !ok {
				return &cli.UsageError{Reason: fmt.Errorf("--set %q: expected field=value", kv)}
			}
			if err := editor.Set(field, value); err != nil {
				return &cli.UsageError{Reason: err}
			}
		}
		if err := editor.Submit(ctx); err != nil {
			var fe authconfig.FieldErrors
			if errors.As(err, &fe) {
				if perr := s.printer.Print(fe); perr != nil {
					return perr
				}
			}
			return err
		}
		return nil
	}

	editor := authform.New(connectorID, draft, nil, cmd.OutOrStdout(), services.Drafts, submit)
	rl, err := editor.UseReadline(nil, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer rl.Close()

	ctx, stop := interruptible(cmd)
	defer stop()
	_, err = editor.Run(ctx)
	return err
}
