package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-live-polls/internal/domain"
	"github.com/tbourn/go-live-polls/internal/http/handlers"
	"github.com/tbourn/go-live-polls/internal/identity"
)

func newCreateCmd(g *globalOpts) *cobra.Command {
	var (
		question string
		options  []string
		email    string
		expires  string
		idemKey  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a poll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := parseExpiry(expires, time.Now())
			if err != nil {
				return err
			}
			if idemKey == "" {
				idemKey = uuid.NewString()
			}
			id, replayed, err := g.client().CreatePoll(cmd.Context(), handlers.CreatePollRequest{
				Question:     question,
				Options:      options,
				CreatorEmail: email,
				ExpiresAt:    exp,
			}, idemKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "replayed": replayed})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&question, "question", "q", "", "poll question")
	f.StringArrayVarP(&options, "option", "o", nil, "answer option (repeat 2 to 10 times)")
	f.StringVar(&email, "email", "", "creator e-mail for the dashboard")
	f.StringVar(&expires, "expires", "", "expiry as RFC 3339 time or duration such as 2h")
	f.StringVar(&idemKey, "idempotency-key", "", "retry key (default: random)")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func newGetCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "get <poll-id>",
		Short: "Show a poll and its tally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := g.client().GetPoll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func newVoteCmd(g *globalOpts) *cobra.Command {
	var (
		option int64
		token  string
	)
	cmd := &cobra.Command{
		Use:   "vote <poll-id>",
		Short: "Vote for one option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				tok, provider, err := identity.DefaultChain(g.logger(cmd.ErrOrStderr())).Resolve()
				if err != nil {
					return err
				}
				g.logger(cmd.ErrOrStderr()).Debug().Str("provider", provider).Msg("voter token resolved")
				token = tok
			}
			tally, err := g.client().Vote(cmd.Context(), args[0], option, token)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tally)
		},
	}
	cmd.Flags().Int64Var(&option, "option", 0, "option id")
	cmd.Flags().StringVar(&token, "token", "", "voter token (default: device fingerprint)")
	_ = cmd.MarkFlagRequired("option")
	return cmd
}

func newWatchCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <poll-id>",
		Short: "Print live tally updates until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			return g.client().Watch(ctx, args[0], func(u domain.PollUpdate) error {
				var total int64
				for _, o := range u.Options {
					total += o.Votes
				}
				fmt.Fprintf(out, "%s  total=%d\n", time.Now().Format("15:04:05"), total)
				for _, o := range u.Options {
					fmt.Fprintf(out, "  [%d] %-24s %d\n", o.ID, o.Text, o.Votes)
				}
				return nil
			})
		},
	}
}

func newDeleteCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <poll-id>",
		Short: "Delete a poll and its votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.client().DeletePoll(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), handlers.SuccessResponse{Success: true})
		},
	}
}

func newMineCmd(g *globalOpts) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List the polls created with an e-mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := g.client().ListByCreator(cmd.Context(), email)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "creator e-mail")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
