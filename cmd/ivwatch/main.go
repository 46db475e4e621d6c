// ivwatch connects to a running engine and prints probability table
// changes as they happen.
// Usage: go run ./cmd/ivwatch --url http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/ivengine/internal/client"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "engine base URL")
	verbose := flag.Bool("verbose", false, "print full change JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(*baseURL, client.WithLogger(logger), client.WithTimeout(10*time.Second))

	info, err := c.Version(ctx)
	if err != nil {
		logger.Error("engine unreachable", "url", *baseURL, "error", err)
		os.Exit(1)
	}
	snap, err := c.Table(ctx)
	if err != nil {
		logger.Error("failed to fetch table", "error", err)
		os.Exit(1)
	}
	logger.Info("connected",
		"engine_version", info.Version,
		"table_version", snap.Version,
		"points", len(snap.Points),
	)

	stream := c.Stream(1024)
	if err := stream.Connect(ctx); err != nil {
		logger.Error("failed to open table stream", "error", err)
		os.Exit(1)
	}
	defer stream.Close()

	count := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping", "changes", count)
			return

		case err := <-stream.Errors():
			logger.Error("stream error", "error", err)
			os.Exit(1)

		case change, ok := <-stream.Changes():
			if !ok {
				logger.Info("engine closed the stream", "changes", count)
				return
			}
			count++

			if *verbose {
				data, _ := json.Marshal(change)
				fmt.Println(string(data))
				continue
			}
			action := "set"
			if change.Inserted {
				action = "insert"
			}
			fmt.Printf("v%-6d %-6s bucket=%-5d %d -> %d\n",
				change.Version, action, change.Bucket, change.Old, change.New)
		}
	}
}
