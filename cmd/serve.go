package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"postboard/backend"
	"postboard/cache"
	"postboard/config"
	"postboard/posts"
	"postboard/server"
	"postboard/storage"
	"postboard/store"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the postboard API",
		Description: `Starts the postboard HTTP server.

Runs storage migrations, then exposes the post board as a REST API with an
SSE stream of post events. Mutations are applied optimistically to the
cached sort-order views and rolled back if the simulated backend request
fails.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"POSTBOARD_PORT"},
			},
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname where the server is running",
				EnvVars: []string{"POSTBOARD_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "latency",
				Usage:   "Simulated backend latency in milliseconds",
				Value:   -1,
				EnvVars: []string{"POSTBOARD_LATENCY"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg := config.Default()
			if path := ctx.String("config"); path != "" {
				loaded, err := config.LoadConfig(path)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			if ctx.IsSet("database") {
				cfg.Storage.Database = ctx.String("database")
			}
			if ctx.IsSet("port") {
				cfg.Server.Port = ctx.Int("port")
			}
			if hostname := ctx.String("hostname"); hostname != "" {
				cfg.Server.Hostname = hostname
			}
			if latency := ctx.Int("latency"); latency >= 0 {
				cfg.Backend.LatencyMs = latency
			}

			fmt.Println("Starting postboard...")

			if err := storage.Migrate(cfg.Storage.Database); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			st, err := storage.Open(cfg.Storage.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			bc := server.NewBroadcaster()
			coordinator := posts.NewCoordinator(
				cache.New(),
				backend.New(store.NewPostStore(st), cfg.Latency()),
				bc,
			)

			app := server.Server(&server.ServerConfig{
				Hostname:    cfg.Server.Hostname,
				CorsOrigin:  cfg.Server.CorsOrigin,
				Coordinator: coordinator,
				Users:       store.NewUserStore(st),
				Broadcaster: bc,
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			done := make(chan struct{})

			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.Errorf("Error shutting down server: %v", err)
				}
				bc.Shutdown()
				close(done)
			}()

			fmt.Println("Starting server...")
			if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
				return err
			}

			<-done
			fmt.Println("Done!")
			return nil
		},
	}
}
