package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream post events from a running server",
		Description: `Connects to a running postboard server's SSE stream and
prints every post event to the command line as a JSON object on a single
line.

Reconnects with exponential backoff if the connection drops.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Value:   "http://localhost:3000",
				Usage:   "Base URL of the postboard server",
				EnvVars: []string{"POSTBOARD_URL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			return watch(ctx.Context, ctx.String("url"))
		},
	}
}

// watch maintains a connection to the server's SSE endpoint, printing the
// data payload of every post event. The backoff is reset after each
// successful connection so a stable server is retried quickly.
func watch(ctx context.Context, baseUrl string) error {
	streamUrl := strings.TrimSuffix(baseUrl, "/") + "/api/posts/sse"

	// Set up exponential backoff for reconnection attempts
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 100 * time.Millisecond
	retry.MaxInterval = 30 * time.Second
	retry.Multiplier = 1.5
	retry.MaxElapsedTime = 0 // Never stop retrying

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := stream(ctx, streamUrl); err != nil {
				log.Errorf("Error streaming from %s: %v", streamUrl, err)
			}

			wait := retry.NextBackOff()
			log.Infof("Reconnecting in %s", wait)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}

func stream(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	log.Info("Connected to event stream")

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			// Skip the init handshake and keep-alive pings
			if event == "init" || event == "ping" {
				continue
			}
			fmt.Println(strings.TrimPrefix(line, "data: "))
		}
	}

	return scanner.Err()
}
