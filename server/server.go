package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"postboard/models"
	"postboard/posts"
	"postboard/store"
)

type ServerConfig struct {

	// The hostname to use for the server
	Hostname string

	// Allowed CORS origin for the board frontend
	CorsOrigin string

	// Coordinator that mediates between mutations and the backend
	Coordinator *posts.Coordinator

	// Store holding the current display name
	Users *store.UserStore

	// Broadcast channel to pass post events to SSE clients
	Broadcaster *Broadcaster
}

// Returns a fiber.App instance to be used as an HTTP server for the board
func Server(config *ServerConfig) *fiber.App {

	bc := config.Broadcaster

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		// Diff
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.CorsOrigin,
		AllowHeaders:     "Content-Type,Cache-Control",
		AllowCredentials: true,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/api/posts", func(c *fiber.Ctx) error {
		order := models.SortOrder(c.Query("order", string(models.SortNewer)))
		if !order.Valid() {
			return c.Status(400).SendString("Invalid sort order")
		}

		feed, err := config.Coordinator.Fetch(c.Context(), order)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"order": order,
			}).Error("Error fetching posts")
			return c.Status(500).SendString("Error fetching posts")
		}

		return c.JSON(feed)
	})

	app.Post("/api/posts", func(c *fiber.Ctx) error {
		var payload models.CreatePostPayload
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(400).SendString("Invalid payload")
		}

		// Field validation happens here, before the coordinator is
		// invoked; the core only checks existence by id.
		if isBlank(payload.Username) || isBlank(payload.Title) || isBlank(payload.Content) {
			return c.Status(400).SendString("username, title and content must be non-empty")
		}

		post, err := config.Coordinator.Create(c.Context(), payload)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error creating post")
			return c.Status(500).SendString("Error creating post")
		}

		return c.Status(201).JSON(post)
	})

	app.Patch("/api/posts/:id", func(c *fiber.Ctx) error {
		id, err := parseId(c.Params("id"))
		if err != nil {
			return c.Status(400).SendString("Invalid post id")
		}

		var payload models.UpdatePostPayload
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(400).SendString("Invalid payload")
		}

		if isBlank(payload.Title) || isBlank(payload.Content) {
			return c.Status(400).SendString("title and content must be non-empty")
		}

		post, err := config.Coordinator.Update(c.Context(), id, payload)
		if err != nil {
			return mutationError(c, err, "Error updating post")
		}

		return c.JSON(post)
	})

	app.Delete("/api/posts/:id", func(c *fiber.Ctx) error {
		id, err := parseId(c.Params("id"))
		if err != nil {
			return c.Status(400).SendString("Invalid post id")
		}

		if err := config.Coordinator.Delete(c.Context(), id); err != nil {
			return mutationError(c, err, "Error deleting post")
		}

		return c.SendStatus(204)
	})

	app.Post("/api/posts/:id/like", func(c *fiber.Ctx) error {
		id, err := parseId(c.Params("id"))
		if err != nil {
			return c.Status(400).SendString("Invalid post id")
		}

		var payload struct {
			Username string `json:"username"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(400).SendString("Invalid payload")
		}
		if isBlank(payload.Username) {
			return c.Status(400).SendString("username must be non-empty")
		}

		post, err := config.Coordinator.ToggleLike(c.Context(), id, payload.Username)
		if err != nil {
			return mutationError(c, err, "Error toggling like")
		}

		return c.JSON(post)
	})

	app.Get("/api/username", func(c *fiber.Ctx) error {
		name, ok, err := config.Users.Current()
		if err != nil {
			return c.Status(500).SendString("Error reading username")
		}
		if !ok {
			return c.Status(404).SendString("No username set")
		}
		return c.JSON(fiber.Map{"username": name})
	})

	app.Put("/api/username", func(c *fiber.Ctx) error {
		var payload struct {
			Username string `json:"username"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(400).SendString("Invalid payload")
		}
		if isBlank(payload.Username) {
			return c.Status(400).SendString("username must be non-empty")
		}

		if err := config.Users.Save(strings.TrimSpace(payload.Username)); err != nil {
			return c.Status(500).SendString("Error saving username")
		}
		return c.SendStatus(204)
	})

	app.Delete("/api/username", func(c *fiber.Ctx) error {
		if err := config.Users.Clear(); err != nil {
			return c.Status(500).SendString("Error clearing username")
		}
		return c.SendStatus(204)
	})

	app.Delete("/api/posts/sse", func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		bc.RemoveClient(key)
		return c.Status(200).SendString("OK")
	})

	app.Get("/api/posts/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		events := make(chan interface{}, 10) // Buffered channel
		aliveChan := time.NewTicker(5 * time.Second)

		defer aliveChan.Stop()

		// Register the client
		bc.AddClient(key, events)

		// Cleanup function
		cleanup := func() {
			log.Infof("Cleaning up SSE stream for client: %s", key)
			bc.RemoveClient(key)
		}

		// Use StreamWriter to manage SSE streaming
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cleanup()

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			// Start streaming loop
			for {
				select {
				case <-aliveChan.C:
					// Send keep-alive pings
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-events:
					if !ok {
						log.Warnf("Event channel closed for client %s", key)
						return
					}

					name, body, err := encodeEvent(event)
					if err != nil {
						log.Errorf("Error marshalling event for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, body); err != nil {
						log.Warnf("Failed to send %s event to client %s: %v", name, key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush %s event for client %s: %v", name, key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

// encodeEvent maps a post event to its SSE event name and JSON body.
func encodeEvent(event interface{}) (string, []byte, error) {
	switch event := event.(type) {
	case models.CreatePostEvent:
		body, err := json.Marshal(event.Post)
		return "create-post", body, err
	case models.UpdatePostEvent:
		body, err := json.Marshal(event.Post)
		return "update-post", body, err
	case models.LikePostEvent:
		body, err := json.Marshal(event.Post)
		return "like-post", body, err
	case models.DeletePostEvent:
		body, err := json.Marshal(fiber.Map{"id": event.Id})
		return "delete-post", body, err
	default:
		return "", nil, fmt.Errorf("unknown event type %T", event)
	}
}

func mutationError(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(404).SendString("Post not found")
	}

	log.WithFields(log.Fields{
		"error": err,
	}).Error(message)
	return c.Status(500).SendString(message)
}

func parseId(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
