package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/api/dto"
	"github.com/hugh/go-magiclink/internal/database"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/users"
	"github.com/hugh/go-magiclink/pkg/config"
	"github.com/hugh/go-magiclink/pkg/crypto"
	"github.com/hugh/go-magiclink/pkg/queue"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand(newApp(os.Stdout)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what the commands share. Tests swap openStore for an
// in-memory store.
type app struct {
	out       io.Writer
	logger    *slog.Logger
	loadCfg   func() (*config.Config, error)
	openStore func(ctx context.Context, cfg *config.Config) (store.Store, error)
}

func newApp(out io.Writer) *app {
	a := &app{
		out:    out,
		logger: util.DiscardLogger(),
		loadCfg: func() (*config.Config, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			return cfg, cfg.Validate()
		},
	}
	a.openStore = func(ctx context.Context, cfg *config.Config) (store.Store, error) {
		return database.OpenStore(ctx, cfg, a.logger)
	}
	return a
}

// withStore loads config, opens the store and closes it after fn returns.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, st store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := a.loadCfg()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	st, err := a.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	return fn(ctx, cfg, st)
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "magiclinkctl",
		Short:         "Administrative tooling for the magic link service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newUsersCommand(a))
	cmd.AddCommand(newLinksCommand(a))
	cmd.AddCommand(newKeysCommand(a))
	cmd.AddCommand(newQueueCommand(a))
	return cmd
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations or create MongoDB indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadCfg()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Store.Driver == config.StoreMemory {
				return errors.New("the memory store has no schema to migrate")
			}

			// OpenStore migrates as part of opening.
			cfg.Database.Migrate = true
			st, err := a.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close(cmd.Context())

			fmt.Fprintf(a.out, "%s schema is up to date\n", cfg.Store.Driver)
			return nil
		},
	}
}

func newUsersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create and inspect users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newUsersCreateCommand(a))
	cmd.AddCommand(newUsersGetCommand(a))
	cmd.AddCommand(newUsersListCommand(a))
	return cmd
}

func newUsersCreateCommand(a *app) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, _ *config.Config, st store.Store) error {
				user, err := users.NewService(st, a.logger).Create(ctx, email, name)
				if err != nil {
					return err
				}
				return a.printJSON(dto.NewUserResponse(user))
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUsersGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|email>",
		Short: "Show a user by id or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, _ *config.Config, st store.Store) error {
				svc := users.NewService(st, a.logger)

				var (
					user *models.User
					err  error
				)
				if id, parseErr := uuid.Parse(args[0]); parseErr == nil {
					user, err = svc.Get(ctx, id)
				} else {
					user, err = svc.FindByEmail(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return a.printJSON(dto.NewUserResponse(user))
			})
		},
	}
}

func newUsersListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the newest users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, _ *config.Config, st store.Store) error {
				list, err := users.NewService(st, a.logger).List(ctx)
				if err != nil {
					return err
				}
				return a.printJSON(dto.NewUserListResponse(list))
			})
		},
	}
}

func newLinksCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Issue and purge magic links",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newLinksIssueCommand(a))
	cmd.AddCommand(newLinksPurgeCommand(a))
	return cmd
}

func newLinksIssueCommand(a *app) *cobra.Command {
	var email, userID string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a magic link and print it instead of sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := magiclink.Identity{Email: email}
			if userID != "" {
				id, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user-id: %w", err)
				}
				identity.UserID = id
			}
			if identity.UserID == uuid.Nil && email == "" {
				return errors.New("one of --email or --user-id is required")
			}

			return a.withStore(cmd, func(ctx context.Context, cfg *config.Config, st store.Store) error {
				issued, err := magiclink.NewIssuer(st, nil, cfg.Server.PublicBaseURL, a.logger).Issue(ctx, identity)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "user:    %s <%s>\n", issued.User.ID, issued.User.Email)
				fmt.Fprintf(a.out, "link:    %s\n", issued.URL)
				fmt.Fprintf(a.out, "expires: %s\n", issued.ExpiresAt.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address; the user is created if missing")
	cmd.Flags().StringVar(&userID, "user-id", "", "Existing user id")
	return cmd
}

func newLinksPurgeCommand(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete magic links that expired before the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, cfg *config.Config, st store.Store) error {
				retention := olderThan
				if retention <= 0 {
					retention = cfg.MagicLink.Retention()
				}

				n, err := st.PurgeMagicLinks(ctx, time.Now().UTC().Add(-retention))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "purged %d magic links\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Purge links expired longer ago than this (default MAGIC_LINK_RETENTION_HOURS)")
	return cmd
}

func newKeysCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Queue encryption keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a QUEUE_ENCRYPTION_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, recipient, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "# public key: %s\n", recipient)
			fmt.Fprintf(a.out, "QUEUE_ENCRYPTION_KEY=%s\n", identity)
			return nil
		},
	})
	return cmd
}

func newQueueCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect background task queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show task counts per queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadCfg()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			inspector := queue.NewInspector(&cfg.Redis)
			defer inspector.Close()

			queues, err := inspector.Queues()
			if err != nil {
				return fmt.Errorf("listing queues: %w", err)
			}
			for _, name := range queues {
				info, err := inspector.GetQueueInfo(name)
				if err != nil {
					return fmt.Errorf("inspecting queue %s: %w", name, err)
				}
				fmt.Fprintf(a.out, "%-10s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
					name, info.Pending, info.Active, info.Scheduled, info.Retry, info.Archived)
			}
			return nil
		},
	})
	return cmd
}
