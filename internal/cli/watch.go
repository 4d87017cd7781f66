package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/playerrelay/internal/model"
)

func newWatchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream player list broadcasts",
		Long: `Connect to the relay's SSE endpoint and print every player list
broadcast as it happens.

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return streamPlayers(ctx, cmd.OutOrStdout(), count)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many broadcasts (0 streams forever)")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamPlayers(ctx context.Context, w io.Writer, count int) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// No timeout for SSE
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	out := NewOutput(cfg.Output, w)
	seen := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			event, data := currentEvent, strings.Join(dataLines, "\n")
			currentEvent, dataLines = "", nil

			switch event {
			case "connected":
				if cfg.Verbose {
					out.PrintMessage("connected to " + url)
				}
			case "players":
				if err := printPlayersEvent(out, data); err != nil {
					return err
				}
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}
	if cfg.Verbose {
		out.PrintMessage("disconnected")
	}
	return nil
}

func printPlayersEvent(out *Output, data string) error {
	if out.format == "json" {
		evt := SSEEvent{Time: time.Now(), Event: "players", Data: data}
		jsonData, _ := json.Marshal(evt)
		fmt.Fprintln(out.w, string(jsonData))
		return nil
	}

	var list []model.Player
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return fmt.Errorf("unreadable broadcast: %w", err)
	}
	fmt.Fprintf(out.w, "[%s] ", time.Now().Format("2006-01-02 15:04:05"))
	out.Print(PlayerList(list))
	return nil
}
