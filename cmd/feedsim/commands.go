package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"feedsim/internal/cmdlog"
	"feedsim/internal/config"
	"feedsim/internal/jobs"
	"feedsim/internal/model"
	"feedsim/internal/theme"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("init", func() error {
				if err := config.Save(cfgPath, config.Default()); err != nil {
					return err
				}
				abs, _ := filepath.Abs(cfgPath)
				theme.PrintBanner()
				fmt.Fprintln(cmd.OutOrStdout(), "Config written to:", abs)
				return nil
			})
		},
	}
}

func newTabsCmd() *cobra.Command {
	tabs := &cobra.Command{
		Use:   "tabs",
		Short: "List and edit tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("tabs_list", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					printTabs(cmd, a)
					return nil
				})
			})
		},
	}

	var icon string
	add := &cobra.Command{
		Use:   "add <id> <title>",
		Short: "Add a tab",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("tabs_add", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					if !a.feed.AddTab(model.TabSpec{ID: args[0], Title: args[1], Icon: icon}) {
						return fmt.Errorf("tab %q already exists or is invalid", args[0])
					}
					printTabs(cmd, a)
					return nil
				})
			})
		},
	}
	add.Flags().StringVar(&icon, "icon", "information-circle-outline", "icon name")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("tabs_remove", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					if !a.feed.RemoveTab(args[0]) {
						return fmt.Errorf("cannot remove tab %q", args[0])
					}
					printTabs(cmd, a)
					return nil
				})
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a tab",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("tabs_rename", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					if !a.feed.UpdateTabTitle(args[0], args[1]) {
						return fmt.Errorf("cannot rename tab %q", args[0])
					}
					printTabs(cmd, a)
					return nil
				})
			})
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Reorder tabs; bookmarks always stays first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("tabs_reorder", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					a.feed.ReorderTabs(args)
					printTabs(cmd, a)
					return nil
				})
			})
		},
	}

	tabs.AddCommand(add, remove, rename, reorder)
	return tabs
}

func printTabs(cmd *cobra.Command, a *app) {
	active := a.feed.ActiveTabID()
	for _, t := range a.feed.AllTabs() {
		theme.Tab(cmd.OutOrStdout(), t, t.ID == active)
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <tab-id>",
		Short: "Generate posts for a tab and show the new ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("refresh", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					moved, err := jobs.RefreshTab(cmd.Context(), a.deps(), args[0])
					if err != nil {
						return err
					}
					for i, t := range moved {
						theme.Tweet(cmd.OutOrStdout(), i+1, t)
					}
					return nil
				})
			})
		},
	}
}

func newBookmarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bookmarks",
		Short: "Show bookmarked posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("bookmarks", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					bs := a.feed.BookmarkedTweets()
					if len(bs) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "no bookmarks yet")
					}
					for i, t := range bs {
						theme.Tweet(cmd.OutOrStdout(), i+1, t)
					}
					return nil
				})
			})
		},
	}
}

func newAchievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "Show reaction counters per animal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("achievements", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					printAchievements(cmd, a)
					return nil
				})
			})
		},
	}
}

func printAchievements(cmd *cobra.Command, a *app) {
	counts := a.ach.Counts()
	kinds := append([]model.ReactionKind(nil), model.ReactionKinds...)
	sort.SliceStable(kinds, func(i, j int) bool { return counts[kinds[i]] > counts[kinds[j]] })
	for _, k := range kinds {
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-10s %d\n", k.DisplayName(), k, counts[k])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "total %d\n", a.ach.Total())
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Generate posts about a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("search", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					for i, t := range jobs.Search(cmd.Context(), a.search, a.gen, args[0]) {
						theme.Tweet(cmd.OutOrStdout(), i+1, t)
					}
					return nil
				})
			})
		},
	}
}

func newAPIKeyCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the generation API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("apikey_status", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					fmt.Fprintln(cmd.OutOrStdout(), "key source:", a.creds.Source(cmd.Context()))
					return nil
				})
			})
		},
	}

	var skipValidation bool
	set := &cobra.Command{
		Use:   "set <key>",
		Short: "Validate and store your own API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("apikey_set", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					if skipValidation {
						return a.creds.Save(cmd.Context(), args[0])
					}
					if err := a.creds.SaveValidated(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "API key saved")
					return nil
				})
			})
		},
	}
	set.Flags().BoolVar(&skipValidation, "no-validate", false, "store without a test call")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove your API key and fall back to the default",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdlog.Run("apikey_delete", func() error {
				return withApp(cmd.Context(), func(a *app) error {
					return a.creds.Delete(cmd.Context())
				})
			})
		},
	}

	root.AddCommand(set, del)
	return root
}
