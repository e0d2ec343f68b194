package cache

import (
	"math/rand"
	"time"

	"github.com/volleystats/parser/internal/domain/match"
)

// EntityClass selects the TTL bucket and queue tuning for one cachable entity
// kind. Match detail picks its class from live status at write time.
type EntityClass string

const (
	ClassPlayer           EntityClass = "player"
	ClassPlayers          EntityClass = "players"
	ClassTeam             EntityClass = "team"
	ClassTeams            EntityClass = "teams"
	ClassScheduledMatches EntityClass = "scheduledMatches"
	ClassResultsMatches   EntityClass = "resultsMatches"
	ClassOnlineMatch      EntityClass = "onlineMatch"
	ClassScheduledMatch   EntityClass = "scheduledMatch"
	ClassCompletedMatch   EntityClass = "completedMatch"
	ClassCompetition      EntityClass = "competition"
)

// Bucket yields randomized durations for one entity class. Randomized ranges
// keep many keys from expiring in lockstep.
type Bucket struct {
	// Cache is the TTL for the cached value itself.
	Cache func() time.Duration
	// Repeat is the interval after which a job for this entity re-runs.
	Repeat func() time.Duration
	// Deduplication is the window suppressing duplicate job enqueues.
	Deduplication func() time.Duration
}

func randSeconds(min, max int) time.Duration {
	return time.Duration(min+rand.Intn(max-min)) * time.Second
}

func randMillis(min, max int) time.Duration {
	return time.Duration(min+rand.Intn(max-min)) * time.Millisecond
}

func bucket(cacheMin, cacheMax, repeatMin, repeatMax int) Bucket {
	return Bucket{
		Cache:         func() time.Duration { return randSeconds(cacheMin, cacheMax) },
		Repeat:        func() time.Duration { return randMillis(repeatMin, repeatMax) },
		Deduplication: func() time.Duration { return randMillis(repeatMin, repeatMax) },
	}
}

// Buckets maps entity classes to their tuning. Values mirror entity
// volatility: live matches churn every few seconds, finished results barely
// ever change.
var Buckets = map[EntityClass]Bucket{
	ClassPlayer:           bucket(28_800, 57_600, 3_600_000, 7_200_000),
	ClassPlayers:          bucket(86_400, 259_200, 14_400_000, 28_800_000),
	ClassTeam:             bucket(86_400, 259_200, 10_800_000, 21_600_000),
	ClassTeams:            bucket(86_400, 259_200, 10_800_000, 21_600_000),
	ClassScheduledMatches: bucket(1_800, 3_600, 225_000, 450_000),
	ClassResultsMatches:   bucket(86_400, 259_200, 14_400_000, 28_800_000),
	ClassOnlineMatch:      bucket(5, 10, 2_000, 4_000),
	ClassScheduledMatch:   bucket(600, 900, 75_000, 150_000),
	ClassCompletedMatch:   bucket(86_400, 259_200, 10_800_000, 21_600_000),
	ClassCompetition: {
		// Competition pages are re-probed on every repeat; the cached value
		// never goes stale on its own.
		Cache:         func() time.Duration { return 0 },
		Repeat:        func() time.Duration { return randMillis(30_000, 40_000) },
		Deduplication: func() time.Duration { return randMillis(30_000, 40_000) },
	},
}

// Priorities orders job classes in the queue; lower runs first.
var Priorities = map[EntityClass]int{
	ClassOnlineMatch:      1,
	ClassCompetition:      2,
	ClassScheduledMatch:   3,
	ClassPlayers:          4,
	ClassTeams:            5,
	ClassScheduledMatches: 6,
	ClassTeam:             7,
	ClassPlayer:           8,
	ClassResultsMatches:   9,
	ClassCompletedMatch:   10,
}

// AggregateCompetitionsTTL bounds the reconstructed all-competitions entry.
// Short on purpose: the aggregate is cheap to rebuild from per-competition
// keys, which carry no expiry of their own.
func AggregateCompetitionsTTL() time.Duration {
	return randSeconds(1_800, 3_600)
}

// NegativeTTL bounds how long a confirmed-absent tombstone lives.
func NegativeTTL() time.Duration {
	return randSeconds(600, 1_200)
}

// MatchClass maps a live status to the TTL class for its detail entry.
func MatchClass(status match.Status) EntityClass {
	switch status {
	case match.StatusFinished:
		return ClassCompletedMatch
	case match.StatusLive:
		return ClassOnlineMatch
	default:
		return ClassScheduledMatch
	}
}

// ListClass maps a match list type to its TTL class.
func ListClass(listType match.ListType) EntityClass {
	if listType == match.ListTypeResults {
		return ClassResultsMatches
	}
	return ClassScheduledMatches
}
