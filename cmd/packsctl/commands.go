package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/DukeRupert/packs/internal"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/spf13/cobra"
)

// SourceCLI tags period resets started from packsctl.
const SourceCLI = "cli"

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %q", what, arg)
	}
	return id, nil
}

func newAllowanceCmd(current func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowance",
		Short: "Read or change a level's download allowance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [level-id]",
		Short: "Show a level's allowance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			levelID, err := parseID(args[0], "level")
			if err != nil {
				return err
			}
			allowance, err := current().quota.GetAllowance(cmd.Context(), levelID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "level %d: %d downloads per period\n", levelID, allowance)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [level-id] [value]",
		Short: "Set a level's allowance",
		Long: `Set a level's allowance. 0 turns the download pack off for the level.
Negative values are stored as their absolute value.

Examples:
  packsctl allowance set 3 10
  packsctl allowance set 3 0
  packsctl allowance set -- 3 -10`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			levelID, err := parseID(args[0], "level")
			if err != nil {
				return err
			}
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid allowance: %q", args[1])
			}

			a := current()
			// The shell is trusted; sign the save as the system actor.
			token := a.nonces.Create(domain.NonceActionSaveAllowance, 0)
			if err := a.quota.SetAllowance(cmd.Context(), levelID, value, token, nil); err != nil {
				return err
			}

			allowance, err := a.quota.GetAllowance(cmd.Context(), levelID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "level %d: %d downloads per period\n", levelID, allowance)
			return nil
		},
	})
	return cmd
}

func newUsageCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage [user-id]",
		Short: "Show a member's download pack for the current period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			usage, err := current().quota.Usage(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printUsage(cmd, usage)
			return nil
		},
	}
}

func printUsage(cmd *cobra.Command, u *domain.PackUsage) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "user\t%d\n", u.UserID)
	if !u.HasLevel {
		fmt.Fprintf(tw, "level\tnone\n")
	} else {
		fmt.Fprintf(tw, "level\t%d\n", u.LevelID)
	}
	fmt.Fprintf(tw, "allowance\t%d\n", u.Allowance)
	fmt.Fprintf(tw, "used\t%d\n", u.Consumed)
	fmt.Fprintf(tw, "remaining\t%d\n", u.Remaining())
	fmt.Fprintf(tw, "at limit\t%t\n", u.AtLimit())
}

func newResetCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [user-id]",
		Short: "Start a new download period for a member",
		Long: `Clear a member's download count, as if a membership payment had
just been recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			event := domain.PaymentRecorded{UserID: userID, Source: SourceCLI}
			if err := current().reset.OnPaymentRecorded(cmd.Context(), event); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "download count reset for user %d\n", userID)
			return nil
		},
	}
}

func newLevelsCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List subscription levels with their allowances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			levels, err := a.memberships.ListLevels(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()
			fmt.Fprintln(tw, "ID\tNAME\tALLOWANCE")
			for _, l := range levels {
				allowance, err := a.quota.GetAllowance(cmd.Context(), l.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\n", l.ID, l.Name, allowance)
			}
			return nil
		},
	}
}

func newSessionCmd(current func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage member sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create [user-id]",
		Short: "Issue a session token for a member",
		Long: `Issue a session token for a member and print it. Set it as the
session cookie to act as that member.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			token, err := current().users.CreateSession(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})
	return cmd
}

func newMigrateCmd(current func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db := current().db
			if err := internal.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			version, err := internal.MigrationVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", version)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := internal.MigrationVersion(cmd.Context(), current().db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
			return nil
		},
	})
	return cmd
}
