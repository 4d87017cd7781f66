package memory

import (
	"context"
	"sync"

	"github.com/mcoot/playerrelay/internal/model"
	"github.com/mcoot/playerrelay/internal/storage"
)

// Storage is an in-memory implementation of the player store
type Storage struct {
	mu sync.RWMutex

	players []model.Player
	index   map[model.PlayerID]int
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players: make([]model.Player, 0, 16),
		index:   make(map[model.PlayerID]int),
	}
}

// Ensure Storage implements the interface
var _ storage.PlayerStore = (*Storage)(nil)

func (s *Storage) Append(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(player)
	return nil
}

func (s *Storage) AppendUnique(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[player.ID]; ok {
		return model.ErrDuplicatePlayer
	}
	s.appendLocked(player)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, player *model.Player) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.index[player.ID]; ok {
		s.players[pos] = clonePlayer(player)
		return true, nil
	}
	s.appendLocked(player)
	return false, nil
}

func (s *Storage) appendLocked(player *model.Player) {
	s.players = append(s.players, clonePlayer(player))
	s.index[player.ID] = len(s.players) - 1
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := clonePlayer(&s.players[pos])
	return &p, nil
}

func (s *Storage) Snapshot(ctx context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Data slices are never mutated after insertion, so sharing them is safe
	result := make([]model.Player, len(s.players))
	copy(result, s.players)
	return result, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players), nil
}

func clonePlayer(p *model.Player) model.Player {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return model.Player{ID: p.ID, Data: data}
}
