package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"feedsim/internal/cmdlog"
	"feedsim/internal/jobs"
	"feedsim/internal/logging"
	"feedsim/internal/metrics"
	"feedsim/internal/model"
	"feedsim/internal/theme"
)

const sessionHelp = `commands:
  tabs                 list tabs
  use <tab-id>         switch the active tab
  refresh              generate posts for the active tab
  show                 show the active tab
  like|rt|react|bm <n> toggle on the n-th post shown
  replies <n>          generate replies to the n-th post
  search <query>       generate posts about a query
  bookmarks            show bookmarks
  achievements         show reaction counters
  quit                 leave the session`

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Interactive feed session with background stock top-up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("session", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					metrics.StartServer(a.cfg.Metrics.Addr)

					ctx, cancel := context.WithCancel(cmd.Context())
					defer cancel()
					go func() {
						if err := jobs.RunStockLoop(ctx, a.deps(), a.cfg.Feed.StockInterval); err != nil && !errors.Is(err, context.Canceled) {
							logging.Error("stock_loop_stopped", map[string]any{"error": err.Error()})
						}
					}()

					theme.PrintBanner()
					s := &session{app: a, out: cmd.OutOrStdout()}
					return s.run(ctx, cmd.InOrStdin())
				})
			})
		},
	}
}

// session holds the REPL state; shown is the list the numeric arguments
// refer to.
type session struct {
	*app
	out   io.Writer
	shown []model.Tweet
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	fmt.Fprintln(s.out, sessionHelp)
	for {
		fmt.Fprintf(s.out, "%s> ", s.feed.ActiveTabID())
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		if name == "quit" || name == "exit" {
			return nil
		}
		if err := s.exec(ctx, name, rest); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *session) exec(ctx context.Context, name, arg string) error {
	switch name {
	case "help":
		fmt.Fprintln(s.out, sessionHelp)
	case "tabs":
		active := s.feed.ActiveTabID()
		for _, t := range s.feed.AllTabs() {
			theme.Tab(s.out, t, t.ID == active)
		}
	case "use":
		if !s.feed.SetActiveTab(arg) {
			return fmt.Errorf("%w: %q", jobs.ErrUnknownTab, arg)
		}
		s.list(s.feed.ActiveTweets())
	case "refresh":
		if _, err := jobs.RefreshTab(ctx, s.deps(), s.feed.ActiveTabID()); err != nil {
			return err
		}
		s.list(s.feed.ActiveTweets())
	case "show":
		s.list(s.feed.ActiveTweets())
	case "bookmarks":
		s.list(s.feed.BookmarkedTweets())
	case "achievements":
		counts := s.ach.Counts()
		for _, k := range model.ReactionKinds {
			fmt.Fprintf(s.out, "%-8s %d\n", k.DisplayName(), counts[k])
		}
	case "search":
		if arg == "" {
			return errors.New("search needs a query")
		}
		s.list(jobs.Search(ctx, s.search, s.gen, arg))
	case "like", "rt", "react", "bm", "replies":
		t, err := s.pick(arg)
		if err != nil {
			return err
		}
		return s.interact(ctx, name, t)
	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
	return nil
}

func (s *session) interact(ctx context.Context, name string, t model.Tweet) error {
	var (
		got model.Tweet
		ok  bool
	)
	switch name {
	case "like":
		got, ok = s.feed.ToggleLike(t.ID)
	case "rt":
		got, ok = s.feed.ToggleRetweet(t.ID)
	case "react":
		got, ok = jobs.ToggleReaction(s.feed, s.ach, t.ID)
	case "bm":
		got, ok = s.feed.ToggleBookmark(t.ID)
		if !ok {
			return errors.New("this post cannot be bookmarked")
		}
	case "replies":
		replies, err := jobs.GenerateReplies(ctx, s.feed, s.gen, t.ID)
		if err != nil {
			return err
		}
		for i, r := range replies {
			theme.Tweet(s.out, i+1, r)
		}
		return nil
	}
	if !ok {
		return jobs.ErrUnknownTweet
	}
	s.replace(got)
	theme.Tweet(s.out, 0, got)
	return nil
}

func (s *session) pick(arg string) (model.Tweet, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(s.shown) {
		return model.Tweet{}, fmt.Errorf("pick a post number between 1 and %d", len(s.shown))
	}
	return s.shown[n-1], nil
}

func (s *session) list(ts []model.Tweet) {
	s.shown = ts
	if len(ts) == 0 {
		fmt.Fprintln(s.out, "nothing here yet")
	}
	for i, t := range ts {
		theme.Tweet(s.out, i+1, t)
	}
}

func (s *session) replace(t model.Tweet) {
	for i := range s.shown {
		if s.shown[i].ID == t.ID {
			s.shown[i] = t
		}
	}
}
