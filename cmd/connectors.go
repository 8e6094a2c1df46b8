package cmd

import (
	"errors"
	"fmt"
	"os"

	"connectorctl/internal/backend"
	"connectorctl/internal/cli"
	"connectorctl/pkg/authconfig"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newConnectorsCmd(flags *cli.CommandFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connectors",
		Aliases: []string{"connector", "conn"},
		Short:   "Manage the connectors registered on the gateway",
		Long: `List, inspect, register and remove MCP servers and A2A agents on the
connector gateway.

Examples:
  connectorctl connectors list
  connectorctl connectors get github -o yaml
  connectorctl connectors create -f github.yaml
  connectorctl connectors create --id docs --kind mcp --url https://docs.example.com/mcp
  connectorctl connectors delete github`,
	}

	cmd.AddCommand(newConnectorsListCmd(flags))
	cmd.AddCommand(newConnectorsGetCmd(flags))
	cmd.AddCommand(newConnectorsCreateCmd(flags))
	cmd.AddCommand(newConnectorsDeleteCmd(flags))
	return cmd
}

func newConnectorsListCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered connectors",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			connectors, err := s.app.Services().Backend.ListConnectors(cmd.Context())
			if err != nil {
				return err
			}
			return s.printer.Print(connectors)
		},
	}
}

func newConnectorsGetCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <connector-id>",
		Short: "Show a connector and its authentication settings",
		Long: `Show a connector and its authentication settings.

Secrets (API keys, OAuth client secrets) are masked in table output and
returned as stored by the gateway in json and yaml output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			connector, err := s.app.Services().Backend.GetConnector(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.printer.Print(*connector)
		},
	}
}

type createOptions struct {
	file        string
	id          string
	name        string
	kind        string
	url         string
	description string
}

func newConnectorsCreateCmd(flags *cli.CommandFlags) *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a connector",
		Long: `Register a connector, either from a YAML or JSON file or from flags.

A file has the same shape as 'connectorctl connectors get -o yaml':

  id: github
  name: GitHub
  kind: mcp
  url: https://mcp.github.example.com
  auth:
    type: oauth
    client_id: my-client
    client_secret: s3cr3t
    authorization_url: https://github.com/login/oauth/authorize
    token_url: https://github.com/login/oauth/access_token

Connectors created from flags start with automatic authentication; use
'connectorctl auth edit' to configure it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			connector, err := opts.connector()
			if err != nil {
				return err
			}
			if errs := authconfig.Validate(connector.Auth.Config); !errs.Valid() {
				return errs
			}

			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			created, err := s.app.Services().Backend.CreateConnector(cmd.Context(), connector)
			if err != nil {
				return err
			}
			s.printer.Success("Created connector %s", created.ID)
			return s.printer.Print(*created)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the connector from a YAML or JSON file")
	cmd.Flags().StringVar(&opts.id, "id", "", "Connector id (assigned by the gateway when empty)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name")
	cmd.Flags().StringVar(&opts.kind, "kind", string(backend.KindMCP), "Connector kind: mcp or a2a")
	cmd.Flags().StringVar(&opts.url, "url", "", "Endpoint of the MCP server or A2A agent")
	cmd.Flags().StringVar(&opts.description, "description", "", "Description")
	cmd.MarkFlagsMutuallyExclusive("file", "url")
	return cmd
}

func (o createOptions) connector() (backend.Connector, error) {
	var c backend.Connector
	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return c, fmt.Errorf("failed to read %s: %w", o.file, err)
		}
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return c, &cli.UsageError{Reason: fmt.Errorf("failed to parse %s: %w", o.file, err)}
		}
		if c.Kind == "" {
			c.Kind = backend.KindMCP
		}
	} else {
		c = backend.Connector{
			ID:          o.id,
			Name:        o.name,
			Kind:        backend.Kind(o.kind),
			URL:         o.url,
			Description: o.description,
		}
	}

	if c.Kind != backend.KindMCP && c.Kind != backend.KindA2A {
		return c, &cli.UsageError{Reason: fmt.Errorf("unknown connector kind %q (valid: mcp, a2a)", c.Kind)}
	}
	if c.URL == "" {
		return c, &cli.UsageError{Reason: errors.New("a connector URL is required (--url or url: in the file)")}
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	return c, nil
}

func newConnectorsDeleteCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <connector-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a connector",
		Long: `Remove a connector from the gateway.

Any authorization flow of the connector is stopped and its saved status and
auth draft are discarded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			if err := s.app.Services().Backend.DeleteConnector(cmd.Context(), id); err != nil {
				return err
			}
			if err := s.app.ForgetConnector(id); err != nil {
				s.printer.Warn("Deleted %s but could not clean up local state: %v", id, err)
				return nil
			}
			s.printer.Success("Deleted connector %s", id)
			return nil
		},
	}
}
