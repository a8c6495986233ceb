package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mnuddindev/otakushelf/pkg/catalog"
	"github.com/mnuddindev/otakushelf/pkg/client"
	"github.com/spf13/cobra"
)

// cli holds the global flags shared by every command.
type cli struct {
	apiURL   string
	email    string
	password string
	anilist  string
	out      io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:   "shelf",
		Short: "OtakuShelf command line client",
		Long: `shelf searches the AniList catalog and manages your OtakuShelf watchlist.

Commands that touch your account sign in with --email and --password, or
SHELF_EMAIL and SHELF_PASSWORD from the environment.

Examples:
  shelf search "fullmetal alchemist"
  shelf watchlist add 5114 --status watching
  shelf watchlist list --status completed`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&c.apiURL, "api", envOr("SHELF_API", "http://localhost:8000"), "OtakuShelf API base URL")
	root.PersistentFlags().StringVar(&c.email, "email", os.Getenv("SHELF_EMAIL"), "account email")
	root.PersistentFlags().StringVar(&c.password, "password", os.Getenv("SHELF_PASSWORD"), "account password")
	root.PersistentFlags().StringVar(&c.anilist, "anilist", catalog.DefaultEndpoint, "AniList GraphQL endpoint")

	root.AddCommand(c.searchCmd(), c.meCmd(), c.watchlistCmd())
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// signIn opens an authenticated session against the API.
func (c *cli) signIn(ctx context.Context) (*client.Client, *client.Session, error) {
	if c.email == "" || c.password == "" {
		return nil, nil, fmt.Errorf("--email and --password (or SHELF_EMAIL and SHELF_PASSWORD) are required")
	}
	api, err := client.New(c.apiURL)
	if err != nil {
		return nil, nil, err
	}
	sess := client.NewSession(api)
	if _, err := sess.SignIn(ctx, c.email, c.password); err != nil {
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}
	return api, sess, nil
}

// store signs in and returns a watchlist store. Failures come back as
// command errors, so nothing is wired to the notifier.
func (c *cli) store(ctx context.Context) (*client.Store, *client.Session, error) {
	api, sess, err := c.signIn(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client.NewStore(api.Watchlist()), sess, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
