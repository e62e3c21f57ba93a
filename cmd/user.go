package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"

	"postboard/storage"
	"postboard/store"
)

func signupCmd() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Pick the display name used for new posts",
		Description: `Stores a display name in the board's storage.

The name is attached to every post created afterwards and identifies the
posts you may edit or delete.`,
		Flags: []cli.Flag{
			databaseFlag(),
		},
		Action: func(ctx *cli.Context) error {
			name, err := prompt.New().Ask("Display name:").Input("johndoe")
			if err != nil {
				return err
			}

			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("display name must be non-empty")
			}

			st, err := storage.Open(ctx.String("database"))
			if err != nil {
				return err
			}
			defer st.Close()

			if err := store.NewUserStore(st).Save(name); err != nil {
				return err
			}

			fmt.Println("Signed up as", name)
			return nil
		},
	}
}

func whoamiCmd() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Print the stored display name",
		Flags: []cli.Flag{
			databaseFlag(),
		},
		Action: func(ctx *cli.Context) error {
			st, err := storage.Open(ctx.String("database"))
			if err != nil {
				return err
			}
			defer st.Close()

			name, ok, err := store.NewUserStore(st).Current()
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("no display name set, run signup first")
			}

			fmt.Println(name)
			return nil
		},
	}
}

func logoutCmd() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Clear the stored display name",
		Flags: []cli.Flag{
			databaseFlag(),
		},
		Action: func(ctx *cli.Context) error {
			st, err := storage.Open(ctx.String("database"))
			if err != nil {
				return err
			}
			defer st.Close()

			return store.NewUserStore(st).Clear()
		},
	}
}
