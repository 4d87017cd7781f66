package players

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/storage"
)

// DuplicatePolicy decides what a REGISTER for a known id does
type DuplicatePolicy string

const (
	// PolicyAppend adds another entry; the list grows by one per REGISTER
	PolicyAppend DuplicatePolicy = "append"
	// PolicyReplace overwrites the known entry, keeping its position
	PolicyReplace DuplicatePolicy = "replace"
	// PolicyReject refuses the registration with model.ErrDuplicatePlayer
	PolicyReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy validates a policy name. Empty means PolicyAppend.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(s); p {
	case "":
		return PolicyAppend, nil
	case PolicyAppend, PolicyReplace, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q: must be append, replace or reject", s)
	}
}

// Service owns player registration on top of the store
type Service struct {
	store  storage.PlayerStore
	policy DuplicatePolicy
	logger *slog.Logger
}

// New creates a new player service
func New(store storage.PlayerStore, policy DuplicatePolicy, logger *slog.Logger) *Service {
	if policy == "" {
		policy = PolicyAppend
	}
	return &Service{
		store:  store,
		policy: policy,
		logger: logger.With(slog.String("component", "players")),
	}
}

// Policy returns the configured duplicate policy
func (s *Service) Policy() DuplicatePolicy {
	return s.policy
}

// Register stores a player according to the duplicate policy
func (s *Service) Register(ctx context.Context, player *model.Player) error {
	switch s.policy {
	case PolicyReject:
		if err := s.store.AppendUnique(ctx, player); err != nil {
			return err
		}
	case PolicyReplace:
		replaced, err := s.store.Upsert(ctx, player)
		if err != nil {
			return err
		}
		if replaced {
			s.logger.Info("player replaced", slog.String("player_id", string(player.ID)))
			return nil
		}
	default:
		if err := s.store.Append(ctx, player); err != nil {
			return err
		}
	}

	s.logger.Info("player registered", slog.String("player_id", string(player.ID)))
	return nil
}

// Snapshot returns the ordered player list
func (s *Service) Snapshot(ctx context.Context) ([]model.Player, error) {
	return s.store.Snapshot(ctx)
}

// Get returns the latest entry for an id
func (s *Service) Get(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return s.store.GetPlayer(ctx, id)
}

// Count returns the number of entries
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
