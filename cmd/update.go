package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/updater"
	"github.com/spf13/cobra"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var (
		repository string
		prerelease bool
		checkOnly  bool
		rollback   bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update paws to the latest release",
		Long: `Replaces this binary with the latest GitHub release. The replaced binary is kept ` +
			`and can be restored with --rollback. A running service must be restarted afterwards.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			u, err := updater.New(updater.Options{
				Repository: repository,
				Prerelease: prerelease,
				Restart:    func() {},
			})
			if err != nil {
				return err
			}
			return runUpdate(cmd.Context(), cmd.OutOrStdout(), u, checkOnly, rollback)
		},
	}
	cmd.Flags().StringVar(&repository, "repository", "smazurov/paws", "GitHub repository to update from")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update exists")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the binary replaced by the last update")
	cmd.MarkFlagsMutuallyExclusive("check", "rollback")
	return cmd
}

func runUpdate(ctx context.Context, w io.Writer, u *updater.Updater, checkOnly, rollback bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if rollback {
		if err := u.Rollback(ctx); err != nil {
			return err
		}
		fmt.Fprintf(w, "rolled back to %s\n", u.Status().BackupVersion)
		return nil
	}

	rel, err := u.Check(ctx)
	if err != nil {
		return err
	}
	current := u.Status().CurrentVersion
	if !rel.Newer {
		fmt.Fprintf(w, "paws %s is up to date (latest %s)\n", current, rel.Version)
		return nil
	}
	if checkOnly {
		fmt.Fprintf(w, "update available: %s -> %s\n", current, rel.Version)
		return nil
	}
	if err := u.Apply(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "updated %s -> %s\n", current, rel.Version)
	return nil
}
