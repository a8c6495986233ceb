package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mnuddindev/otakushelf/pkg/catalog"
	"github.com/mnuddindev/otakushelf/pkg/client"
	"github.com/spf13/cobra"
)

func (c *cli) searchCmd() *cobra.Command {
	var (
		page, perPage int
		mark          bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the AniList catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := catalog.New(c.anilist).Search(ctx, strings.Join(args, " "), page, perPage)
			if err != nil {
				return err
			}

			var onList map[int64]*client.Item
			if mark {
				st, _, err := c.store(ctx)
				if err != nil {
					return err
				}
				ids := make([]int64, 0, len(res.Media))
				for _, a := range res.Media {
					ids = append(ids, a.ID)
				}
				if onList, err = st.CheckMembershipMany(ctx, ids); err != nil {
					return err
				}
			}
			printSearch(c.out, res, onList, mark)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "results per page (max 50)")
	cmd.Flags().BoolVar(&mark, "mark", false, "mark titles already on your watchlist (signs in)")
	return cmd
}

func (c *cli) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sess, err := c.signIn(cmd.Context())
			if err != nil {
				return err
			}
			printProfile(c.out, sess.Profile())
			return nil
		},
	}
}

func (c *cli) watchlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watchlist",
		Aliases: []string{"wl"},
		Short:   "Manage your watchlist",
	}
	cmd.AddCommand(c.listCmd(), c.addCmd(), c.updateCmd(), c.removeCmd(), c.checkCmd())
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var (
		status      string
		skip, limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watchlist items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := parseStatus(status, true)
			if err != nil {
				return err
			}
			store, _, err := c.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Fetch(cmd.Context(), client.ListParams{Status: st, Skip: skip, Limit: limit}); err != nil {
				return err
			}
			printWatchlist(c.out, store.Snapshot())
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only items with this status")
	cmd.Flags().IntVar(&skip, "skip", 0, "items to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "items to show (max 100)")
	return cmd
}

func (c *cli) addCmd() *cobra.Command {
	var (
		title, status, notes string
		score                float64
	)
	cmd := &cobra.Command{
		Use:   "add <anime-id>",
		Short: "Add an anime to your watchlist",
		Long:  "Add an anime by AniList id. Title, cover and score are looked up in the catalog unless --title is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			animeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || animeID <= 0 {
				return fmt.Errorf("anime id must be a positive integer, got %q", args[0])
			}
			st, err := parseStatus(status, true)
			if err != nil {
				return err
			}

			n := client.NewItem{AnimeID: animeID, AnimeTitle: title, Status: st}
			if notes != "" {
				n.Notes = &notes
			}
			if cmd.Flags().Changed("score") {
				n.AnimeScore = &score
			}
			if n.AnimeTitle == "" {
				anime, err := catalog.New(c.anilist).Get(ctx, animeID)
				if err != nil {
					return fmt.Errorf("look up anime %d: %w", animeID, err)
				}
				n.AnimeTitle = anime.Title
				if anime.CoverImage != "" {
					n.AnimePictureURL = &anime.CoverImage
				}
				if n.AnimeScore == nil {
					n.AnimeScore = anime.Score
				}
			}

			store, _, err := c.store(ctx)
			if err != nil {
				return err
			}
			item, err := store.Add(ctx, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Added %q as item %d (%s)\n", item.AnimeTitle, item.ID, item.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title to store instead of the catalog one")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default plan_to_watch)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes, up to 1000 characters")
	cmd.Flags().Float64Var(&score, "score", 0, "score from 0 to 10")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var (
		status, notes string
		score         float64
	)
	cmd := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Change status, notes or score of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}

			var u client.ItemUpdate
			if cmd.Flags().Changed("status") {
				st, err := parseStatus(status, false)
				if err != nil {
					return err
				}
				u.Status = &st
			}
			if cmd.Flags().Changed("notes") {
				u.Notes = &notes
			}
			if cmd.Flags().Changed("score") {
				u.AnimeScore = &score
			}
			if u.Status == nil && u.Notes == nil && u.AnimeScore == nil {
				return fmt.Errorf("nothing to update: pass --status, --notes or --score")
			}

			store, _, err := c.store(cmd.Context())
			if err != nil {
				return err
			}
			item, err := store.Update(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Updated %q (%s)\n", item.AnimeTitle, item.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes; empty clears them")
	cmd.Flags().Float64Var(&score, "score", 0, "new score from 0 to 10")
	return cmd
}

func (c *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <item-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an item from your watchlist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			store, _, err := c.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Removed item %d\n", id)
			return nil
		},
	}
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <anime-id>...",
		Short: "Check whether anime are on your watchlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("anime id must be a positive integer, got %q", a)
				}
				ids = append(ids, id)
			}
			store, _, err := c.store(cmd.Context())
			if err != nil {
				return err
			}
			found, err := store.CheckMembershipMany(cmd.Context(), ids)
			if err != nil {
				return err
			}
			printMembership(c.out, ids, found)
			return nil
		},
	}
}

func parseItemID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("item id must be a positive integer, got %q", raw)
	}
	return uint(id), nil
}

func parseStatus(raw string, allowEmpty bool) (client.WatchStatus, error) {
	if raw == "" && allowEmpty {
		return "", nil
	}
	st := client.WatchStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !st.Valid() {
		names := make([]string, len(client.Statuses))
		for i, s := range client.Statuses {
			names[i] = string(s)
		}
		return "", fmt.Errorf("status must be one of %s", strings.Join(names, ", "))
	}
	return st, nil
}
