package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/bootstrap"
	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/utils"
)

type cli struct {
	out        io.Writer
	configPath string
	quiet      bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:           "punchctl",
		Short:         "Run punchclock reconciliation jobs and admin tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (JSON or YAML); defaults to $CONFIG_PATH")
	root.PersistentFlags().BoolVarP(&c.quiet, "quiet", "q", false, "Only log errors")

	var force bool
	autoclose := &cobra.Command{
		Use:   "autoclose",
		Short: "Close today's open sessions of users past the auto-close time",
		RunE: c.withApp(func(ctx context.Context, app *bootstrap.App) (interface{}, error) {
			return app.Scheduler.RunAutoClose(ctx, force), nil
		}),
	}
	autoclose.Flags().BoolVar(&force, "force", false, "Close regardless of the users' local time")

	remind := &cobra.Command{
		Use:   "remind",
		Short: "Send reminders for sessions open longer than the reminder threshold",
		RunE: c.withApp(func(ctx context.Context, app *bootstrap.App) (interface{}, error) {
			return app.Scheduler.RunReminders(ctx), nil
		}),
	}

	healthcheck := &cobra.Command{
		Use:   "healthcheck",
		Short: "Count open and orphaned punches and alert over threshold",
		RunE: c.withApp(func(ctx context.Context, app *bootstrap.App) (interface{}, error) {
			return app.Scheduler.RunHealthCheck(ctx), nil
		}),
	}

	var apply bool
	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "Scan for orphaned punches; --apply annotates them",
		RunE: c.withApp(func(ctx context.Context, app *bootstrap.App) (interface{}, error) {
			if apply {
				return app.Scheduler.RunOrphanCleanup(ctx), nil
			}
			return app.Engine.Detector.ScanOrphans(ctx, true)
		}),
	}
	orphans.Flags().BoolVar(&apply, "apply", false, "Annotate flagged punches instead of a dry run")

	census := &cobra.Command{
		Use:   "census",
		Short: "List users whose last punch today is IN",
		RunE: c.withApp(func(ctx context.Context, app *bootstrap.App) (interface{}, error) {
			return app.Engine.Detector.OpenPunchCensus(ctx)
		}),
	}

	root.AddCommand(autoclose, remind, healthcheck, orphans, census, c.tokenCmd(), c.userCmd())
	return root
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		userID   uint
		username string
		role     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for a user (development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			if role != models.RoleEmployee && role != models.RoleAdmin {
				return fmt.Errorf("--role must be %s or %s", models.RoleEmployee, models.RoleAdmin)
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.App.TokenTTLHours) * time.Hour
			}
			token, err := utils.NewTokenIssuer(cfg.App.JWTSecret).GenerateToken(userID, username, role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, token)
			return err
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "User id")
	cmd.Flags().StringVar(&username, "username", "", "Username claim")
	cmd.Flags().StringVar(&role, "role", models.RoleEmployee, "Role claim (employee or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime; defaults to app.token_ttl_hours")
	return cmd
}

func (c *cli) userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage work profiles"}

	var (
		username string
		email    string
		role     string
		timezone string
		days     string
		target   int
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: c.withApp(func(ctx context.Context, app *bootstrap.App) (interface{}, error) {
			if strings.TrimSpace(username) == "" {
				return nil, fmt.Errorf("--username is required")
			}
			u := &models.User{
				Username:               strings.TrimSpace(username),
				Email:                  email,
				Role:                   role,
				Active:                 true,
				Timezone:               timezone,
				WorkingDays:            days,
				DailyWorkTargetMinutes: target,
			}
			if _, err := app.Engine.Policy.ForUser(u); err != nil {
				return nil, err
			}
			if _, err := app.Repos.Users.FindByUsername(ctx, u.Username); err == nil {
				return nil, fmt.Errorf("username %q already exists", u.Username)
			} else if !services.IsNotFound(err) {
				return nil, err
			}
			if err := app.Repos.Users.CreateUser(ctx, u); err != nil {
				return nil, err
			}
			return u, nil
		}),
	}
	add.Flags().StringVar(&username, "username", "", "Login name")
	add.Flags().StringVar(&email, "email", "", "Notification address")
	add.Flags().StringVar(&role, "role", models.RoleEmployee, "employee or admin")
	add.Flags().StringVar(&timezone, "timezone", "", "IANA timezone; empty uses the default")
	add.Flags().StringVar(&days, "working-days", "", "Comma separated weekdays; empty uses the default")
	add.Flags().IntVar(&target, "target-minutes", 0, "Daily target; 0 uses the default")

	user.AddCommand(add)
	return user
}

// withApp loads config, builds the app, runs fn and prints its result as JSON.
// SIGINT and SIGTERM cancel fn between users.
func (c *cli) withApp(fn func(ctx context.Context, app *bootstrap.App) (interface{}, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		if c.quiet {
			cfg.Log.Level = "error"
		}
		logger, err := utils.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}()

		result, err := fn(ctx, app)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}
