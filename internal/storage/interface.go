package storage

import (
	"context"

	"github.com/mcoot/playerrelay/internal/model"
)

// PlayerStore defines the interface for the ordered player list.
// Insertion order is preserved and the id index always refers to the most
// recent entry stored for an id.
type PlayerStore interface {
	// Append adds the player to the end of the sequence, even if the id is known
	Append(ctx context.Context, player *model.Player) error
	// AppendUnique appends unless the id is known, in which case it returns
	// model.ErrDuplicatePlayer and leaves the store untouched
	AppendUnique(ctx context.Context, player *model.Player) error
	// Upsert replaces the entry for a known id in place, otherwise appends.
	// It reports whether an existing entry was replaced.
	Upsert(ctx context.Context, player *model.Player) (bool, error)

	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	// Snapshot returns a copy of the sequence that callers may keep
	Snapshot(ctx context.Context) ([]model.Player, error)
	Count(ctx context.Context) (int, error)
}
