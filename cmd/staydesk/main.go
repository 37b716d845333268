package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vbonduro/staydesk/internal/auth"
	"github.com/vbonduro/staydesk/internal/bookingcode"
	"github.com/vbonduro/staydesk/internal/config"
	"github.com/vbonduro/staydesk/internal/db"
	"github.com/vbonduro/staydesk/internal/docstore/local"
	"github.com/vbonduro/staydesk/internal/logging"
	"github.com/vbonduro/staydesk/internal/service"
	"github.com/vbonduro/staydesk/internal/store"
	"github.com/vbonduro/staydesk/internal/web"
	"github.com/vbonduro/staydesk/internal/web/templates"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}

// app holds what every command needs: configuration, the logger, the open
// database and the services built on it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	svc    web.Services
}

// withApp loads configuration, opens the database and runs fn. Resources are
// released when fn returns.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	files, err := local.NewLocalDocStore(cfg.DocsPath)
	if err != nil {
		logger.Error("failed to initialize document store", "path", cfg.DocsPath, "error", err)
		return err
	}

	propertyStore := store.NewPropertyStore(database)
	guestStore := store.NewGuestStore(database)
	stayStore := store.NewStayStore(database)
	documentStore := store.NewDocumentStore(database)
	codeStore := store.NewCodeStore(database)
	rules := service.NewHouseRulesService(store.NewHouseRulesStore(database), logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     database,
		svc: web.Services{
			Auth:       service.NewAuthService(store.NewUserStore(database), auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL), logger),
			Properties: service.NewPropertyService(propertyStore, documentStore, files, logger),
			Guests:     service.NewGuestService(guestStore, logger),
			Stays:      service.NewStayService(stayStore, codeStore, guestStore, documentStore, bookingcode.New(), cfg.PublicBaseURL, cfg.Location, logger),
			Rules:      rules,
			Documents:  service.NewDocumentService(documentStore, files, logger),
			Public:     service.NewPublicService(codeStore, stayStore, guestStore, propertyStore, rules, logger),
		},
	}
	return fn(ctx, a)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "staydesk",
		Short:         "Homestay booking administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newUserCmd(),
		newPropertyCmd(),
		newMemberCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, func(ctx context.Context, a *app) error {
				if a.cfg.SessionSecret == "" {
					a.logger.Error("SESSION_SECRET is required")
					return errors.New("SESSION_SECRET is not set")
				}
				server := web.NewServer(a.svc, templates.FS, web.Options{
					CookieSecure:    a.cfg.CookieSecure,
					SessionTTL:      a.cfg.SessionTTL,
					PublicRateLimit: a.cfg.PublicRateLimit,
					PublicRateBurst: a.cfg.PublicRateBurst,
					Location:        a.cfg.Location,
					DB:              a.db,
				}, a.logger)

				if err := server.ListenAndServe(ctx, a.cfg.ListenAddr); err != nil {
					a.logger.Error("server error", "error", err)
					return err
				}
				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(_ context.Context, a *app) error {
				version, err := db.Migrate(a.db)
				if err != nil {
					return err
				}
				cmd.Printf("schema at version %d\n", version)
				return nil
			})
		},
	}
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage admin users"}

	var password string
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create an admin user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				u, err := a.svc.Auth.CreateUser(ctx, service.UserInput{Username: args[0], Password: password})
				if err != nil {
					return err
				}
				cmd.Printf("created user %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&password, "password", "", "initial password, at least 8 characters")
	_ = add.MarkFlagRequired("password")

	var newPassword string
	passwd := &cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Set the password of an admin user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.svc.Auth.SetPassword(ctx, args[0], newPassword); err != nil {
					return err
				}
				cmd.Printf("password updated for %s\n", args[0])
				return nil
			})
		},
	}
	passwd.Flags().StringVar(&newPassword, "password", "", "new password, at least 8 characters")
	_ = passwd.MarkFlagRequired("password")

	cmd.AddCommand(add, passwd)
	return cmd
}

func newPropertyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "property", Short: "Manage properties"}

	var (
		owner string
		in    service.PropertyInput
	)
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var ownerID int64
				if owner != "" {
					u, err := a.svc.Auth.UserByName(ctx, owner)
					if err != nil {
						return err
					}
					ownerID = u.ID
				}
				in.Name = args[0]
				p, err := a.svc.Properties.Create(ctx, ownerID, in)
				if err != nil {
					return err
				}
				cmd.Printf("created property %s (id %d, slug %s)\n", p.Name, p.ID, p.Slug)
				return nil
			})
		},
	}
	add.Flags().StringVar(&owner, "owner", "", "username to make a member of the property")
	add.Flags().StringVar(&in.Address, "address", "", "postal address")
	add.Flags().StringVar(&in.LocationURL, "location-url", "", "map link")
	add.Flags().StringVar(&in.Phone, "phone", "", "contact phone number")
	add.Flags().StringVar(&in.Email, "email", "", "contact email address")

	cmd.AddCommand(add)
	return cmd
}

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Manage property memberships"}

	var propertyID int64
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Give a user access to a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				u, err := a.svc.Auth.UserByName(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.svc.Properties.AddMember(ctx, propertyID, u.ID); err != nil {
					return err
				}
				cmd.Printf("%s is now a member of property %d\n", u.Username, propertyID)
				return nil
			})
		},
	}
	add.Flags().Int64Var(&propertyID, "property", 0, "property id")
	_ = add.MarkFlagRequired("property")

	cmd.AddCommand(add)
	return cmd
}
