package redis

import "fmt"

// playersKey returns the Redis key for the ordered LIST of player objects
func playersKey(prefix string) string {
	return fmt.Sprintf("%s:players", prefix)
}

// playersIndexKey returns the Redis key for the HASH of player id -> list position
func playersIndexKey(prefix string) string {
	return fmt.Sprintf("%s:players:idx", prefix)
}
