package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/services/broadcast"
	"github.com/mcoot/playerrelay/internal/services/registry"
)

// CommandName identifies the kind of an inbound command
type CommandName string

const (
	CommandRegister CommandName = "REGISTER"
)

// Command is a decoded inbound frame
type Command struct {
	Name CommandName
	// Fields holds every top-level field of the frame, name included
	Fields map[string]json.RawMessage
}

// Field returns a raw top-level field of the frame
func (c Command) Field(key string) (json.RawMessage, bool) {
	raw, ok := c.Fields[key]
	return raw, ok
}

// Handler executes one kind of command. sender is nil for commands that
// did not arrive over a live connection.
type Handler func(ctx context.Context, sender *registry.Connection, cmd Command) error

// PlayerRegistrar stores registered players
type PlayerRegistrar interface {
	Register(ctx context.Context, player *model.Player) error
}

// PlayerBroadcaster pushes the current player list to every connection
type PlayerBroadcaster interface {
	BroadcastPlayers(ctx context.Context) (broadcast.Result, error)
}

// Dispatcher decodes inbound frames and routes them by command name
type Dispatcher struct {
	players     PlayerRegistrar
	broadcaster PlayerBroadcaster
	logger      *slog.Logger

	mu       sync.RWMutex
	handlers map[CommandName]Handler
}

// New creates a dispatcher with the built-in commands registered
func New(players PlayerRegistrar, broadcaster PlayerBroadcaster, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		players:     players,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "dispatcher")),
		handlers:    make(map[CommandName]Handler),
	}
	d.Handle(CommandRegister, d.handleRegister)
	return d
}

// Handle registers or replaces the handler for a command name
func (d *Dispatcher) Handle(name CommandName, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Decode parses a raw frame into a Command. The frame must be a JSON object
// with a non-empty string name.
func Decode(raw []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Command{}, fmt.Errorf("%w: %w", model.ErrMalformedCommand, err)
	}
	if fields == nil {
		return Command{}, fmt.Errorf("%w: frame must be a JSON object", model.ErrMalformedCommand)
	}

	rawName, ok := fields["name"]
	if !ok {
		return Command{}, fmt.Errorf("%w: missing name", model.ErrMalformedCommand)
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil {
		return Command{}, fmt.Errorf("%w: name must be a string", model.ErrMalformedCommand)
	}
	if name == "" {
		return Command{}, fmt.Errorf("%w: empty name", model.ErrMalformedCommand)
	}

	return Command{Name: CommandName(name), Fields: fields}, nil
}

// Dispatch decodes raw and runs the matching handler. Unknown commands are
// logged and reported with model.ErrUnknownCommand without side effects.
func (d *Dispatcher) Dispatch(ctx context.Context, sender *registry.Connection, raw []byte) error {
	cmd, err := Decode(raw)
	if err != nil {
		d.logger.Debug("malformed command",
			slog.String("connection_id", senderID(sender)),
			slog.Any("error", err))
		return err
	}

	d.mu.RLock()
	h, ok := d.handlers[cmd.Name]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("unknown command",
			slog.String("connection_id", senderID(sender)),
			slog.String("command", string(cmd.Name)))
		return fmt.Errorf("%w: %q", model.ErrUnknownCommand, cmd.Name)
	}

	return h(ctx, sender, cmd)
}

func (d *Dispatcher) handleRegister(ctx context.Context, sender *registry.Connection, cmd Command) error {
	raw, ok := cmd.Field("player")
	if !ok {
		return fmt.Errorf("%w: REGISTER requires a player", model.ErrMalformedCommand)
	}

	player, err := model.ParsePlayer(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrMalformedCommand, err)
	}

	if err := d.players.Register(ctx, player); err != nil {
		return fmt.Errorf("failed to register player %s: %w", player.ID, err)
	}

	d.logger.Debug("register handled",
		slog.String("connection_id", senderID(sender)),
		slog.String("player_id", string(player.ID)))

	// A stored player is broadcast even if the sender has already gone
	if _, err := d.broadcaster.BroadcastPlayers(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to broadcast players: %w", err)
	}
	return nil
}

func senderID(sender *registry.Connection) string {
	if sender == nil {
		return ""
	}
	return sender.ID()
}
