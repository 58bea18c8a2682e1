package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/cache"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
)

// errNoEventBus is returned by watch when no Redis cache is configured.
var errNoEventBus = errors.New("escalation events need cache.driver redis")

// newThresholdCmd creates the threshold subcommand.
func newThresholdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threshold [value]",
		Short: "Show or set the confidence threshold",
		Long: `Without an argument, prints the stored confidence threshold. With one,
stores a new threshold; running API servers pick it up on their next search.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(args) == 1 {
				value, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid threshold %q: %w", args[0], err)
				}
				if err := rt.repos.Settings.SetConfidenceThreshold(ctx, value); err != nil {
					return err
				}
				if err := rt.engine.InvalidateCache(ctx); err != nil {
					logger.Warn().Err(err).Msg("Failed to invalidate match cache")
				}
			}

			threshold := rt.engine.Threshold(ctx)
			if outputJSON {
				return rt.ui.JSON(map[string]float64{"confidence_threshold": threshold})
			}
			rt.ui.KeyValue("Confidence threshold", threshold)
			return nil
		},
	}
}

// newEscalationsCmd creates the escalations command group.
func newEscalationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "escalations",
		Aliases: []string{"esc"},
		Short:   "Work the escalation queue",
	}
	cmd.AddCommand(newEscalationsListCmd())
	cmd.AddCommand(newEscalationsSetCmd())
	cmd.AddCommand(newEscalationsWatchCmd())
	return cmd
}

func newEscalationsListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *escalation.Status
			if status != "" {
				s, err := escalation.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = &s
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			items, err := rt.escalations.List(ctx, filter)
			if err != nil {
				return err
			}

			if outputJSON {
				return rt.ui.JSON(items)
			}
			if len(items) == 0 {
				rt.ui.Info("No escalations")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, e := range items {
				rows = append(rows, []string{
					e.ID,
					string(e.Priority),
					string(e.Status),
					e.CreatedAt.Local().Format("2006-01-02 15:04"),
					Truncate(e.QueryText, 50),
				})
			}
			rt.ui.Table([]string{"ID", "PRIORITY", "STATUS", "CREATED", "QUERY"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, in_progress, resolved, closed)")
	return cmd
}

func newEscalationsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <escalation-id> <status>",
		Short: "Move an escalation to a new status",
		Long: `Escalations move pending, in_progress, resolved and may be closed from
any state except closed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := escalation.ParseStatus(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			e, err := rt.escalations.Transition(ctx, args[0], to)
			if err != nil {
				return err
			}

			if outputJSON {
				return rt.ui.JSON(e)
			}
			rt.ui.Success("Escalation %s is now %s", e.ID, e.Status)
			return nil
		},
	}
}

func newEscalationsWatchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream new escalations as they are created",
		Long: `Subscribes to the escalation event channel on Redis and prints each new
escalation until interrupted, or until --count events have arrived.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Cache.Driver != "redis" {
				return errNoEventBus
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			sub, ok := rt.cache.(cache.Subscriber)
			if !ok {
				return errNoEventBus
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			seen := 0
			var printErr error
			err = rt.escalations.Watch(ctx, sub, func(e escalation.Event) {
				seen++
				if outputJSON {
					printErr = rt.ui.JSON(e)
				} else {
					line := fmt.Sprintf("[%s] %s %s", e.Priority, e.EscalationID, Truncate(e.QueryText, 60))
					if e.Priority == escalation.PriorityUrgent || e.Priority == escalation.PriorityHigh {
						rt.ui.Warning("%s", line)
					} else {
						rt.ui.Info("%s", line)
					}
				}
				if printErr != nil || (count > 0 && seen >= count) {
					cancel()
				}
			})
			if err != nil {
				return err
			}
			return printErr
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after this many events (0 streams until interrupted)")
	return cmd
}
