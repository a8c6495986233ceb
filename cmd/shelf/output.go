package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mnuddindev/otakushelf/pkg/catalog"
	"github.com/mnuddindev/otakushelf/pkg/client"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func printSearch(w io.Writer, res *catalog.SearchResult, onList map[int64]*client.Item, mark bool) {
	if len(res.Media) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	tw := newTable(w)
	header := "ID\tTITLE\tSCORE\tEPISODES\tSTATUS"
	if mark {
		header += "\tON LIST"
	}
	fmt.Fprintln(tw, header)
	for _, a := range res.Media {
		eps := "-"
		if a.Episodes != nil {
			eps = fmt.Sprint(*a.Episodes)
		}
		row := fmt.Sprintf("%d\t%s\t%s\t%s\t%s", a.ID, a.Title, score(a.Score), eps, strings.ToLower(a.Status))
		if mark {
			on := "-"
			if it := onList[a.ID]; it != nil {
				on = string(it.Status)
			}
			row += "\t" + on
		}
		fmt.Fprintln(tw, row)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nPage %d of %d (%d results)\n", res.PageInfo.CurrentPage, res.PageInfo.LastPage, res.PageInfo.Total)
}

func printProfile(w io.Writer, p *client.Profile) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Username:\t%s\n", p.Username)
	fmt.Fprintf(tw, "Name:\t%s\n", p.DisplayName)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "Watchlist:\t%d titles\n", p.WatchlistCount)
	fmt.Fprintf(tw, "Member for:\t%d days\n", p.AccountAgeDays)
	tw.Flush()
}

func printWatchlist(w io.Writer, snap client.Snapshot) {
	if len(snap.Items) == 0 {
		fmt.Fprintln(w, "Nothing here yet.")
	} else {
		tw := newTable(w)
		fmt.Fprintln(tw, "ID\tANIME\tTITLE\tSTATUS\tSCORE\tADDED")
		for _, it := range snap.Items {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
				it.ID, it.AnimeID, it.AnimeTitle, it.Status, score(it.AnimeScore), it.CreatedAt.Format("2006-01-02"))
		}
		tw.Flush()
	}

	parts := make([]string, 0, len(client.Statuses))
	for _, st := range client.Statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", st, snap.StatusCounts[st]))
	}
	if snap.Filter != "" {
		fmt.Fprintf(w, "\n%d %s, %d total\n", snap.FilteredCount, snap.Filter, snap.TotalCount)
	} else {
		fmt.Fprintf(w, "\n%d total\n", snap.TotalCount)
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}

func printMembership(w io.Writer, ids []int64, found map[int64]*client.Item) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ANIME\tON LIST\tITEM\tSTATUS")
	for _, id := range ids {
		it := found[id]
		if it == nil {
			fmt.Fprintf(tw, "%d\tno\t-\t-\n", id)
			continue
		}
		fmt.Fprintf(tw, "%d\tyes\t%d\t%s\n", id, it.ID, it.Status)
	}
	tw.Flush()
}
