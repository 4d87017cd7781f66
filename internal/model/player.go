package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PlayerID uniquely identifies a player across the relay
type PlayerID string

// Player is a registered participant. Data holds the player object exactly as
// the client sent it (compacted); the relay never interprets anything but the id.
type Player struct {
	ID   PlayerID
	Data json.RawMessage
}

// ParsePlayer validates a raw player object and extracts its identifier.
// The value must be a JSON object whose "id" is a non-empty string or a number.
func ParsePlayer(raw []byte) (*Player, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: player must be a JSON object", ErrInvalidPlayer)
	}

	rawID, ok := fields["id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidPlayer)
	}

	id, err := parsePlayerID(rawID)
	if err != nil {
		return nil, err
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlayer, err)
	}

	return &Player{ID: id, Data: compacted.Bytes()}, nil
}

func parsePlayerID(raw json.RawMessage) (PlayerID, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: unreadable id", ErrInvalidPlayer)
	}

	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) == "" {
			return "", fmt.Errorf("%w: empty id", ErrInvalidPlayer)
		}
		return PlayerID(id), nil
	case json.Number:
		return canonicalNumberID(id)
	default:
		return "", fmt.Errorf("%w: id must be a string or a number", ErrInvalidPlayer)
	}
}

// canonicalNumberID gives equal numbers one id, so 1, 1.0 and 1e0 are the
// same player. Integers keep full precision; other values use the shortest
// float64 text.
func canonicalNumberID(n json.Number) (PlayerID, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return PlayerID(strconv.FormatInt(i, 10)), nil
	}

	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: id is not a representable number", ErrInvalidPlayer)
	}
	if f == 0 {
		f = 0 // folds -0
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return PlayerID(strconv.FormatInt(int64(f), 10)), nil
	}
	return PlayerID(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// MarshalJSON writes the player object as the client sent it
func (p Player) MarshalJSON() ([]byte, error) {
	if len(p.Data) == 0 {
		return []byte("null"), nil
	}
	return p.Data, nil
}

// UnmarshalJSON restores a player from its stored object
func (p *Player) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePlayer(data)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}
