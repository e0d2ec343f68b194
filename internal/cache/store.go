package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is the cache-aside backend. Implementations hold JSON documents keyed
// by entity and support pattern scans for aggregate reads.
type Store interface {
	// GetJSON reads the document at key. Returns (nil, nil) on a miss.
	GetJSON(ctx context.Context, key string) ([]byte, error)
	// SetJSON writes the document at key with the given TTL. A zero TTL
	// stores the value without expiry.
	SetJSON(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// MGetJSON reads many documents at once, skipping missing keys.
	MGetJSON(ctx context.Context, keys ...string) ([][]byte, error)
	// ScanKeys returns all keys matching the glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

const negativeSuffix = ":negative"

// NegativeKey derives the tombstone key marking an entity as confirmed
// absent upstream.
func NegativeKey(key string) string { return key + negativeSuffix }

// MarkNegative stores a tombstone for key so repeated lookups skip the
// upstream probe until the tombstone expires.
func MarkNegative(ctx context.Context, s Store, key string) error {
	return s.SetJSON(ctx, NegativeKey(key), []byte(`true`), NegativeTTL())
}

// IsNegative reports whether key carries a live tombstone.
func IsNegative(ctx context.Context, s Store, key string) (bool, error) {
	return s.Exists(ctx, NegativeKey(key))
}

// ClearNegative drops the tombstone, typically after the entity reappears.
func ClearNegative(ctx context.Context, s Store, key string) error {
	return s.Delete(ctx, NegativeKey(key))
}

// Key builders. One scheme across both backends so scans and invalidation
// stay predictable.

const keyPrefix = "volleystation"

func CompetitionKey(id int, layout string) string {
	return fmt.Sprintf("%s:competition:%d:%s", keyPrefix, id, layout)
}

// CompetitionLayoutPattern matches every competition entry stored under one
// layout namespace. Tombstones carry a further suffix and never match.
func CompetitionLayoutPattern(layout string) string {
	return keyPrefix + ":competition:*:" + layout
}

func CompetitionsKey() string {
	return keyPrefix + ":competitions:all"
}

func TeamsKey(competitionID int) string {
	return fmt.Sprintf("%s:%d:teams", keyPrefix, competitionID)
}

func TeamKey(competitionID int, teamID string) string {
	return fmt.Sprintf("%s:%d:team:%s", keyPrefix, competitionID, teamID)
}

func PlayersKey(competitionID int) string {
	return fmt.Sprintf("%s:%d:players", keyPrefix, competitionID)
}

func PlayerKey(competitionID, playerID int) string {
	return fmt.Sprintf("%s:%d:player:%d", keyPrefix, competitionID, playerID)
}

func MatchesKey(competitionID int, listType string) string {
	return fmt.Sprintf("%s:%d:matches:%s", keyPrefix, competitionID, listType)
}

func MatchKey(matchID int) string {
	return fmt.Sprintf("%s:match:%d", keyPrefix, matchID)
}
