package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/assist"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/matching"
)

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	var (
		models    []string
		category  string
		limit     int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the FAQ corpus",
		Long: `Search scores every active FAQ against the query and lists the ones
clearing the confidence threshold. FAQs tagged with one of --model rank first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			query := faq.Query{Text: strings.Join(args, " "), UserModels: faq.ParseModels(models)}
			if category != "" {
				c, err := faq.ParseCategory(category)
				if err != nil {
					return err
				}
				query.Category = &c
			}

			req := matching.SearchRequest{Query: query, Limit: limit}
			if cmd.Flags().Changed("threshold") {
				if threshold < 0 {
					return fmt.Errorf("threshold must be non-negative")
				}
				req.Threshold = &threshold
			}

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			stop := rt.ui.Spinner("Matching against FAQ corpus...")
			result, err := rt.engine.Search(ctx, req)
			stop()
			if err != nil {
				return err
			}

			if outputJSON {
				return rt.ui.JSON(result)
			}

			if result.Empty() {
				if result.TimedOut {
					rt.ui.Warning("Scoring timed out; the query would be escalated")
				} else {
					rt.ui.Warning("No FAQ cleared threshold %.2f; the query would be escalated", result.Threshold)
				}
				return nil
			}

			rows := make([][]string, 0, len(result.Candidates))
			for i, c := range result.Candidates {
				affinity := ""
				if c.ModelAffinity {
					affinity = "✓"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					c.Entry.ID,
					fmt.Sprintf("%.3f", c.Score),
					affinity,
					Truncate(c.Entry.Question, 60),
				})
			}
			rt.ui.Table([]string{"#", "ID", "SCORE", "MODEL", "QUESTION"}, rows)
			rt.ui.Info("%d of %d FAQs cleared threshold %.2f", len(result.Candidates), result.Scored, result.Threshold)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&models, "model", "m", nil, "scooter model(s) owned by the user")
	cmd.Flags().StringVar(&category, "category", "", "restrict to one category")
	cmd.Flags().IntVarP(&limit, "limit", "n", matching.SearchLimit, "maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "override the stored confidence threshold")
	return cmd
}

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var (
		models    []string
		userID    string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a chat query or escalate it",
		Long: `Ask runs the chat flow: the best FAQ is returned and its view counted,
or the query is escalated to human support with a keyword-derived priority.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			stop := rt.ui.Spinner("Looking for an answer...")
			answer, err := rt.assistant.Ask(ctx, assist.AskRequest{
				Query:     faq.Query{Text: strings.Join(args, " "), UserModels: faq.ParseModels(models)},
				UserID:    userID,
				SessionID: sessionID,
			})
			stop()
			if err != nil {
				return err
			}

			if outputJSON {
				return rt.ui.JSON(answer)
			}

			if answer.Status == assist.StatusEscalated {
				rt.ui.Warning("%s", answer.Message)
				rt.ui.KeyValue("Escalation", answer.EscalationID)
				rt.ui.KeyValue("Priority", answer.Priority)
				return nil
			}

			rt.ui.Success("%s", answer.FAQ.Question)
			rt.ui.KeyValue("Answer", answer.Message)
			rt.ui.KeyValue("FAQ", answer.FAQ.ID)
			rt.ui.KeyValue("Score", fmt.Sprintf("%.3f", answer.Score))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&models, "model", "m", nil, "scooter model(s) owned by the user")
	cmd.Flags().StringVar(&userID, "user", "", "user id recorded on an escalation")
	cmd.Flags().StringVar(&sessionID, "session", "", "chat session id recorded on an escalation")
	return cmd
}

// newRateCmd creates the rate subcommand.
func newRateCmd() *cobra.Command {
	var helpful, notHelpful bool

	cmd := &cobra.Command{
		Use:   "rate <faq-id>",
		Short: "Record a helpful or not-helpful vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if helpful == notHelpful {
				return fmt.Errorf("exactly one of --helpful or --not-helpful is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.feedback.RecordRating(ctx, args[0], helpful); err != nil {
				return err
			}

			if outputJSON {
				return rt.ui.JSON(map[string]interface{}{"faq_id": args[0], "helpful": helpful})
			}
			rt.ui.Success("Rating recorded for %s", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&helpful, "helpful", false, "the answer helped")
	cmd.Flags().BoolVar(&notHelpful, "not-helpful", false, "the answer did not help")
	cmd.MarkFlagsMutuallyExclusive("helpful", "not-helpful")
	return cmd
}

// newStatsCmd creates the stats subcommand.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <faq-id>",
		Short: "Show view and rating counters of an FAQ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.feedback.Stats(ctx, args[0])
			if err != nil {
				return err
			}

			if outputJSON {
				return rt.ui.JSON(stats)
			}
			rt.ui.KeyValue("FAQ", stats.FAQID)
			rt.ui.KeyValue("Views", stats.ViewCount)
			rt.ui.KeyValue("Helpful", stats.HelpfulCount)
			rt.ui.KeyValue("Not helpful", stats.NotHelpfulCount)
			rt.ui.KeyValue("Helpful ratio", fmt.Sprintf("%.0f%%", stats.HelpfulRatio*100))
			return nil
		},
	}
}
