package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mcoot/playerrelay/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case PlayerList:
		o.printPlayerList(v)
	case model.Player:
		fmt.Fprintf(o.w, "%s %s\n", v.ID, v.Data)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case Stats:
		fmt.Fprintf(o.w, "Players: %d\n", v.Players)
		fmt.Fprintf(o.w, "Connections: %d\n", v.Connections)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// PlayerList is the broadcast player array
type PlayerList []model.Player

// MarshalJSON keeps an empty list as [] rather than null
func (l PlayerList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]model.Player(l))
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Stats response type
type Stats struct {
	Players     int `json:"players"`
	Connections int `json:"connections"`
}

func (o *Output) printPlayerList(list PlayerList) {
	fmt.Fprintf(o.w, "Players (%d):\n", len(list))
	for i, p := range list {
		fmt.Fprintf(o.w, "  %d. %s %s\n", i+1, p.ID, p.Data)
	}
}
