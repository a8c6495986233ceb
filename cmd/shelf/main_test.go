package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mnuddindev/otakushelf/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SHELF_EMAIL", "")
	t.Setenv("SHELF_PASSWORD", "")
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchPrintsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"Page":{
			"pageInfo":{"total":1,"currentPage":1,"lastPage":1,"hasNextPage":false,"perPage":20},
			"media":[{"id":5114,"title":{"romaji":"Hagane no Renkinjutsushi","english":"Fullmetal Alchemist: Brotherhood"},
				"averageScore":90,"genres":["Action"],"status":"FINISHED","episodes":64}]
		}}}`))
	}))
	defer srv.Close()

	out, err := run(t, "search", "--anilist", srv.URL, "fullmetal", "alchemist")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Fullmetal Alchemist: Brotherhood")
	assert.Contains(t, out, "9.0")
	assert.Contains(t, out, "64")
	assert.Contains(t, out, "finished")
	assert.Contains(t, out, "Page 1 of 1 (1 results)")
	assert.NotContains(t, out, "ON LIST")
}

func TestAccountCommandsNeedCredentials(t *testing.T) {
	for _, args := range [][]string{
		{"me"},
		{"watchlist", "list"},
		{"wl", "rm", "3"},
	} {
		_, err := run(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "--email and --password")
	}
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad status filter", []string{"watchlist", "list", "--status", "binging"}, "status must be one of"},
		{"bad anime id", []string{"watchlist", "add", "fma"}, "anime id must be a positive integer"},
		{"zero item id", []string{"watchlist", "remove", "0"}, "item id must be a positive integer"},
		{"empty update", []string{"watchlist", "update", "7"}, "nothing to update"},
		{"negative check id", []string{"watchlist", "check", "5114", "-1"}, "anime id must be a positive integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := parseStatus(" Watching ", false)
	require.NoError(t, err)
	assert.Equal(t, client.Watching, st)

	st, err = parseStatus("", true)
	require.NoError(t, err)
	assert.Empty(t, st)

	_, err = parseStatus("", false)
	assert.Error(t, err)
}

func TestPrintWatchlist(t *testing.T) {
	score := 9.1
	snap := client.Snapshot{
		Items: []client.Item{{
			ID: 2, AnimeID: 16498, AnimeTitle: "Attack on Titan", Status: client.Watching,
			AnimeScore: &score, CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		}},
		TotalCount:    3,
		FilteredCount: 1,
		Filter:        client.Watching,
		StatusCounts:  map[client.WatchStatus]int{client.Watching: 1, client.Completed: 2},
	}

	var buf bytes.Buffer
	printWatchlist(&buf, snap)
	out := buf.String()
	assert.Contains(t, out, "Attack on Titan")
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "9.1")
	assert.Contains(t, out, "1 watching, 3 total")
	assert.Contains(t, out, "completed=2")
	assert.Contains(t, out, "plan_to_watch=0")

	buf.Reset()
	printWatchlist(&buf, client.Snapshot{StatusCounts: map[client.WatchStatus]int{}})
	assert.Contains(t, buf.String(), "Nothing here yet.")
	assert.Contains(t, buf.String(), "0 total")
}

func TestPrintMembership(t *testing.T) {
	var buf bytes.Buffer
	printMembership(&buf, []int64{5114, 1}, map[int64]*client.Item{
		5114: {ID: 4, AnimeID: 5114, Status: client.Completed},
	})
	out := buf.String()
	assert.Regexp(t, `5114\s+yes\s+4\s+completed`, out)
	assert.Regexp(t, `1\s+no\s+-\s+-`, out)
}
