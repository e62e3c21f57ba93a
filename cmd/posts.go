package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"postboard/models"
	"postboard/storage"
	"postboard/store"
)

func postsCmd() *cli.Command {
	return &cli.Command{
		Name:  "posts",
		Usage: "Print the stored posts to the command line",
		Description: `Prints every stored post to the command line.

Returns each post as a JSON object on a single line. Use a tool like jq to
process the output.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{
				Name:    "order",
				Aliases: []string{"o"},
				Value:   string(models.SortNewer),
				Usage:   "Sort order, either newer or older",
				EnvVars: []string{"POSTBOARD_ORDER"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			order := models.SortOrder(ctx.String("order"))
			if !order.Valid() {
				return fmt.Errorf("invalid sort order: %s", ctx.String("order"))
			}

			st, err := storage.Open(ctx.String("database"))
			if err != nil {
				return err
			}
			defer st.Close()

			all, err := store.NewPostStore(st).ListAll()
			if err != nil {
				return err
			}

			for _, post := range models.Sorted(all, order) {
				printStdout(&post)
			}

			return nil
		},
	}
}

func printStdout(post *models.Post) {
	// Print as single JSON string on a single line
	postJson, err := json.Marshal(post)
	if err == nil {
		fmt.Println(string(postJson))
	}
}
