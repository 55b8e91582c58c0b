package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/catalog"
	"github.com/KirkDiggler/vipsync/internal/events"
	"github.com/KirkDiggler/vipsync/internal/handlers/discord"
	"github.com/KirkDiggler/vipsync/internal/handlers/status"
	"github.com/KirkDiggler/vipsync/internal/models"
	"github.com/KirkDiggler/vipsync/internal/services/sharedstorage"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change game settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				return printJSON(cmd.OutOrStdout(), a.storage.GetSettings(cmd.Context()))
			})
		},
	})

	var baseWin, bonusChance, randomness, volatility int
	update := &cobra.Command{
		Use:   "update <game>",
		Short: "Change one game's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial := &models.GameSettingsUpdate{}
			flags := cmd.Flags()
			if flags.Changed("base-win") {
				partial.BaseWin = models.Int(baseWin)
			}
			if flags.Changed("bonus-chance") {
				partial.BonusChance = models.Int(bonusChance)
			}
			if flags.Changed("randomness") {
				partial.Randomness = models.Int(randomness)
			}
			if flags.Changed("volatility") {
				partial.Volatility = models.Int(volatility)
			}

			return withApp(cmd.Context(), false, func(a *app) error {
				output, err := a.storage.UpdateSettings(cmd.Context(), &sharedstorage.UpdateSettingsInput{
					GameID: args[0],
					Update: partial,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), output.Settings)
			})
		},
	}
	update.Flags().IntVar(&baseWin, "base-win", 0, "base win rate in percent")
	update.Flags().IntVar(&bonusChance, "bonus-chance", 0, "bonus chance in percent")
	update.Flags().IntVar(&randomness, "randomness", 0, "randomness in percent")
	update.Flags().IntVar(&volatility, "volatility", 0, "volatility in percent")
	cmd.AddCommand(update)

	return cmd
}

func newBroadcastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send and read broadcasts",
	}

	input := &sharedstorage.SendBroadcastInput{}
	var broadcastType string
	send := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a broadcast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Message = args[0]
			input.Type = models.BroadcastType(broadcastType)

			return withApp(cmd.Context(), false, func(a *app) error {
				output, err := a.storage.SendBroadcast(cmd.Context(), input)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), output.Broadcast)
			})
		},
	}
	send.Flags().StringVar(&input.Title, "title", "", "headline")
	send.Flags().StringVar(&input.Sender, "sender", "admin", "who sent it")
	send.Flags().StringVar(&broadcastType, "type", string(models.BroadcastTypeInfo), "info, warning or promo")
	send.Flags().StringToStringVar(&input.Meta, "meta", nil, "extra key=value fields")
	cmd.AddCommand(send)

	var all bool
	list := &cobra.Command{
		Use:   "unread",
		Short: "List unread broadcasts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				if all {
					return printJSON(cmd.OutOrStdout(), a.storage.GetBroadcasts(cmd.Context()))
				}
				return printJSON(cmd.OutOrStdout(), a.storage.GetUnreadBroadcasts(cmd.Context()))
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include read broadcasts")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark a broadcast as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				return a.storage.MarkBroadcastAsRead(cmd.Context(), &sharedstorage.MarkBroadcastAsReadInput{
					BroadcastID: args[0],
				})
			})
		},
	})

	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage connected-user presence",
	}

	input := &sharedstorage.RegisterUserInput{}
	var role string
	register := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a connected user and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Name = args[0]
			input.Role = models.UserRole(role)

			return withApp(cmd.Context(), false, func(a *app) error {
				output, err := a.storage.RegisterUser(cmd.Context(), input)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), output.User)
			})
		},
	}
	register.Flags().StringVar(&role, "role", string(models.UserRoleUser), "admin or user")
	register.Flags().StringVar(&input.Page, "page", "", "page or client the user is on")
	register.Flags().StringToStringVar(&input.Meta, "meta", nil, "extra key=value fields")
	cmd.AddCommand(register)

	cmd.AddCommand(&cobra.Command{
		Use:   "touch <id>",
		Short: "Refresh a user's last-seen time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				return a.storage.UpdateUserActivity(cmd.Context(), &sharedstorage.UpdateUserActivityInput{
					UserID: args[0],
				})
			})
		},
	})

	var active bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				if active {
					return printJSON(cmd.OutOrStdout(), a.storage.GetActiveUsers(cmd.Context()))
				}
				return printJSON(cmd.OutOrStdout(), a.storage.GetUsers(cmd.Context()))
			})
		},
	}
	list.Flags().BoolVar(&active, "active", false, "only users seen recently")
	cmd.AddCommand(list)

	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired broadcasts and stale users once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				return printJSON(cmd.OutOrStdout(), a.storage.RunCleanup(cmd.Context()))
			})
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print settings and broadcast changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, true, func(a *app) error {
				out := cmd.OutOrStdout()
				unsubscribe := a.storage.AddListener(sharedstorage.EventAll, func(ctx context.Context, event events.Event) error {
					return printJSON(out, event)
				})
				defer unsubscribe()

				<-ctx.Done()
				return nil
			})
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cleanup loop, Discord relay and status server until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, true, func(a *app) error {
				return serve(ctx, a)
			})
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if a.cfg.DiscordToken != "" {
		bot, err := discord.New(&discord.Config{
			Token:         a.cfg.DiscordToken,
			ApplicationID: a.cfg.DiscordApplicationID,
			GuildID:       a.cfg.DiscordGuildID,
			ChannelID:     a.cfg.DiscordChannelID,
			Storage:       a.storage,
			Logger:        a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		if err := bot.Start(ctx); err != nil {
			return fmt.Errorf("failed to start bot: %w", err)
		}
		defer func() {
			if err := bot.Stop(); err != nil {
				a.logger.Warn("failed to stop bot", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	if a.cfg.MetricsAddr != "" {
		router, err := status.NewRouter(&status.Config{
			Source:   a.storage,
			Gatherer: a.registry,
			Health:   a.health,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		a.logger.Info("status server listening", zap.String("addr", a.cfg.MetricsAddr))
	}

	a.logger.Info("serving", zap.String("store", a.cfg.Store))

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return fmt.Errorf("status server failed: %w", err)
	}
}

func newCatalogCmd() *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the built-in game catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Default()
			if err != nil {
				return err
			}

			if provider == "" {
				return printJSON(cmd.OutOrStdout(), c)
			}

			games, err := c.Games(provider)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), games)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "only list one provider's games")

	return cmd
}
