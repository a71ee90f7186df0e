// Command packsctl inspects and adjusts download packs from the shell.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DukeRupert/packs/internal"
	"github.com/DukeRupert/packs/internal/csrf"
	"github.com/DukeRupert/packs/internal/repository"
	"github.com/DukeRupert/packs/internal/service"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// app holds what the commands operate on.
type app struct {
	db          *sql.DB
	quota       service.QuotaService
	reset       service.ResetService
	memberships service.MembershipService
	users       service.UserService
	nonces      *csrf.Nonces
	close       func()
}

type opener func(ctx context.Context, logLevel string) (*app, error)

func openApp(ctx context.Context, logLevel string) (*app, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(os.Stderr, cfg.Env, logLevel)

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	metaStore, closeMetaStore, err := internal.OpenMetaStore(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	repo := repository.New(db)
	nonces := csrf.NewNonces([]byte(cfg.NonceSecret), cfg.NonceLifetime)
	memberships := service.NewMembershipService(repo, logger)
	quota := service.NewQuotaService(metaStore, memberships, nonces, logger)

	return &app{
		db:          db,
		quota:       quota,
		reset:       service.NewResetService(quota, logger),
		memberships: memberships,
		users:       service.NewUserService(repo, logger),
		nonces:      nonces,
		close: func() {
			_ = closeMetaStore()
			_ = db.Close()
		},
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	var (
		a        *app
		logLevel string
	)
	current := func() *app { return a }

	root := &cobra.Command{
		Use:           "packsctl",
		Short:         "Manage download packs",
		Long:          `Inspect and adjust level allowances and member download counts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a != nil {
				return nil
			}
			var err error
			a, err = open(cmd.Context(), logLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil && a.close != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newAllowanceCmd(current),
		newUsageCmd(current),
		newResetCmd(current),
		newLevelsCmd(current),
		newSessionCmd(current),
		newMigrateCmd(current),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openApp).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
