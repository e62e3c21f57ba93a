package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "postboard",
		Usage: "A single-board social post service",
		Description: `A small social post board: users pick a display name and
		create, edit, delete, and like short text posts.

		Posts are persisted as a single serialized list in an SQLite
		database. A simulated backend adds fixed latency to every request,
		and an optimistic cache layer applies mutations speculatively
		and rolls them back when a request fails.

		Flags can generally be set via environment variables, e.g.:

		--database => POSTBOARD_DATABASE=postboard.db
		--port => POSTBOARD_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			postsCmd(),
			watchCmd(),
			signupCmd(),
			whoamiCmd(),
			logoutCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
