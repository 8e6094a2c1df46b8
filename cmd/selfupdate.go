package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"connectorctl/internal/cli"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// updateRepository is the GitHub owner/repo whose releases self-update
// installs. Release builds stamp it with
//
//	-ldflags "-X connectorctl/cmd.updateRepository=<owner>/<repo>"
//
// Builds without it need --repository or CONNECTORCTL_UPDATE_REPOSITORY.
var updateRepository = ""

const updateRepositoryEnv = "CONNECTORCTL_UPDATE_REPOSITORY"

func newSelfUpdateCmd() *cobra.Command {
	var (
		repository string
		checkOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Replace this binary with the latest release",
		Long: `Look up the latest GitHub release of connectorctl and, when it is newer
than the running version, download it over the current binary.

The release repository is stamped in at build time. --repository or the
` + updateRepositoryEnv + ` environment variable point at another one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfUpdate(cmd.Context(), cmd.OutOrStdout(), GetVersion(), repository, checkOnly)
		},
	}

	cmd.Flags().StringVar(&repository, "repository", "", "GitHub owner/repo to take releases from")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether a newer release exists")
	return cmd
}

// resolveUpdateRepository picks the flag, then the environment, then the
// build-time default.
func resolveUpdateRepository(flag string) (string, error) {
	repo := strings.TrimSpace(updateRepository)
	if v := strings.TrimSpace(os.Getenv(updateRepositoryEnv)); v != "" {
		repo = v
	}
	if v := strings.TrimSpace(flag); v != "" {
		repo = v
	}

	if repo == "" {
		return "", &cli.UsageError{Reason: fmt.Errorf(
			"no release repository configured: pass --repository <owner>/<repo> or set %s", updateRepositoryEnv)}
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", &cli.UsageError{Reason: fmt.Errorf("release repository %q is not in owner/repo form", repo)}
	}
	return repo, nil
}

func runSelfUpdate(ctx context.Context, out io.Writer, current, repository string, checkOnly bool) error {
	// Development builds carry no semantic version to compare against.
	if current == "" || current == "dev" {
		return fmt.Errorf("cannot self-update a development build")
	}
	repo, err := resolveUpdateRepository(repository)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Fprintf(out, "Current version: %s\n", current)
	fmt.Fprintf(out, "Checking %s for updates...\n", repo)

	updater, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil {
		return fmt.Errorf("error detecting latest version: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found in %s", repo)
	}
	if !latest.GreaterThan(current) {
		fmt.Fprintln(out, "Current version is the latest.")
		return nil
	}

	fmt.Fprintf(out, "Found newer version: %s (published at %s)\n", latest.Version(), latest.PublishedAt)
	if checkOnly {
		return nil
	}
	fmt.Fprintf(out, "Release notes:\n%s\n", latest.ReleaseNotes)

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	fmt.Fprintf(out, "Updating %s to version %s...\n", exe, latest.Version())
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version())
	return nil
}
