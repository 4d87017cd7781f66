package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/playerrelay/internal/model"
)

func newRegisterCmd() *cobra.Command {
	var data string
	var viaHTTP bool

	cmd := &cobra.Command{
		Use:   "register <id>",
		Short: "Register a player and print the broadcast list",
		Long: `Send a REGISTER command for a player with the given id.

Extra player attributes are passed as a JSON object with --data. By default
the command is sent over WebSocket and the first broadcast that includes the
player is printed. With --http it is submitted to the HTTP command endpoint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := buildRegisterFrame(args[0], data)
			if err != nil {
				return err
			}
			if cfg.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "sending %s\n", frame)
			}

			var list []model.Player
			if viaHTTP {
				list, err = registerOverHTTP(cmd.Context(), frame)
			} else {
				list, err = registerOverWebSocket(cmd.Context(), frame, model.PlayerID(args[0]))
			}
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(PlayerList(list))
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", `Extra player attributes as a JSON object, e.g. '{"name":"Ada"}'`)
	cmd.Flags().BoolVar(&viaHTTP, "http", false, "Submit over HTTP instead of WebSocket")

	return cmd
}

// buildRegisterFrame merges the id into the optional attribute object
func buildRegisterFrame(id, data string) (json.RawMessage, error) {
	if id == "" {
		return nil, errors.New("player id must not be empty")
	}

	player := map[string]json.RawMessage{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &player); err != nil || player == nil {
			return nil, fmt.Errorf("--data must be a JSON object")
		}
	}
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	player["id"] = rawID

	return json.Marshal(map[string]any{
		"name":   "REGISTER",
		"player": player,
	})
}

func registerOverHTTP(ctx context.Context, frame json.RawMessage) ([]model.Player, error) {
	if err := client.Post(ctx, "/api/v1/commands", frame, nil); err != nil {
		return nil, err
	}
	var list []model.Player
	if err := client.Get(ctx, "/api/v1/players", &list); err != nil {
		return nil, err
	}
	return list, nil
}

func registerOverWebSocket(ctx context.Context, frame json.RawMessage, id model.PlayerID) ([]model.Player, error) {
	wsURL, err := cfg.WebSocketURL("/ws")
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}

	// Other clients may cause broadcasts first; wait for one that has us
	_ = conn.SetReadDeadline(time.Now().Add(cfg.Timeout))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("no broadcast received: %w", err)
		}

		list, err := decodeReply(msg)
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			if p.ID == id {
				return list, nil
			}
		}
	}
}

// decodeReply turns a relay frame into a player list or the error it reports
func decodeReply(msg []byte) ([]model.Player, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var frame struct {
			Name  string   `json:"name"`
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &frame); err != nil {
			return nil, fmt.Errorf("unreadable frame: %w", err)
		}
		return nil, fmt.Errorf("%s", frame.Error.String())
	}

	var list []model.Player
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("unreadable broadcast: %w", err)
	}
	return list, nil
}
