package cmd

import (
	"github.com/urfave/cli/v2"
)

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "postboard.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"POSTBOARD_DATABASE"},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to TOML configuration file",
		EnvVars: []string{"POSTBOARD_CONFIG"},
	}
}
