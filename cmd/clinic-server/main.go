package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/clinicrx/clinic/internal/config"
	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/domain/subscription"
	"github.com/clinicrx/clinic/internal/platform/db"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/migrations"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic prescription API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir, cfg.MigrationsDir)).UpTo(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir, cfg.MigrationsDir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-8s %-36s %-9s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				fmt.Printf("%-8d %-36s %-9s %s\n", s.Version, s.Name, statusLabel(s), appliedAt(s))
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

// migrationSource prefers the --dir flag, then MIGRATIONS_DIR, then the
// migrations compiled into the binary.
func migrationSource(flagDir, configDir string) fs.FS {
	switch {
	case flagDir != "":
		return os.DirFS(flagDir)
	case configDir != "":
		return os.DirFS(configDir)
	}
	return migrations.Files
}

func statusLabel(s db.MigrationStatus) string {
	switch {
	case s.Modified:
		return "modified"
	case s.Applied:
		return "applied"
	}
	return "pending"
}

func appliedAt(s db.MigrationStatus) string {
	if s.AppliedAt == nil {
		return ""
	}
	return s.AppliedAt.Format("2006-01-02 15:04:05")
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic in trial",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			t := newTrialTenant(name, cfg.TrialDays, time.Now())
			if err := identity.NewRepo(pool).CreateTenant(ctx, t); err != nil {
				return fmt.Errorf("create clinic: %w", err)
			}
			fmt.Printf("Created clinic %s (%s), trial ends %s\n", t.Name, t.ID, t.TrialEndsAt.Format("2006-01-02"))
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic name")
	cmd.AddCommand(createCmd)

	subCmd := &cobra.Command{
		Use:   "subscription <tenant-id>",
		Short: "Set a clinic's subscription status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}
			status, _ := cmd.Flags().GetString("status")
			trialDays, _ := cmd.Flags().GetInt("trial-days")
			u := subscriptionUpdate(status, trialDays, time.Now())

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := subscription.NewService(subscription.NewRepo(pool), i18n.New(cfg.DefaultLanguage))
			g, err := svc.SetStatus(ctx, tenantID, u)
			if err != nil {
				return err
			}
			fmt.Printf("Clinic %s is now %s (active: %t)\n", tenantID, g.Status, g.IsActive)
			return nil
		},
	}
	subCmd.Flags().String("status", subscription.StatusActive, "trial, active, expired or suspended")
	subCmd.Flags().Int("trial-days", 0, "Trial length from now when --status=trial")
	cmd.AddCommand(subCmd)

	return cmd
}

func newTrialTenant(name string, trialDays int, now time.Time) *identity.Tenant {
	ends := now.AddDate(0, 0, trialDays)
	return &identity.Tenant{
		Name:               name,
		SubscriptionStatus: subscription.StatusTrial,
		TrialEndsAt:        &ends,
	}
}

func subscriptionUpdate(status string, trialDays int, now time.Time) subscription.Update {
	u := subscription.Update{Status: status}
	if status == subscription.StatusTrial && trialDays > 0 {
		ends := now.AddDate(0, 0, trialDays)
		u.TrialEndsAt = &ends
	}
	return u
}
