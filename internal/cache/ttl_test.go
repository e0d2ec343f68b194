package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/volleystats/parser/internal/domain/match"
)

func TestBuckets_RandomizedWithinRange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		class                EntityClass
		cacheMin, cacheMax   time.Duration
		repeatMin, repeatMax time.Duration
	}{
		{ClassOnlineMatch, 5 * time.Second, 10 * time.Second, 2 * time.Second, 4 * time.Second},
		{ClassScheduledMatch, 600 * time.Second, 900 * time.Second, 75 * time.Second, 150 * time.Second},
		{ClassCompletedMatch, 24 * time.Hour, 72 * time.Hour, 3 * time.Hour, 6 * time.Hour},
	}
	for _, tc := range cases {
		b := Buckets[tc.class]
		for i := 0; i < 50; i++ {
			ttl := b.Cache()
			require.GreaterOrEqualf(t, ttl, tc.cacheMin, "class %s cache ttl", tc.class)
			require.Lessf(t, ttl, tc.cacheMax, "class %s cache ttl", tc.class)

			repeat := b.Repeat()
			require.GreaterOrEqualf(t, repeat, tc.repeatMin, "class %s repeat", tc.class)
			require.Lessf(t, repeat, tc.repeatMax, "class %s repeat", tc.class)
		}
	}
}

func TestBuckets_CompetitionNeverExpires(t *testing.T) {
	t.Parallel()

	b := Buckets[ClassCompetition]
	require.Zero(t, b.Cache())
	require.Greater(t, b.Repeat(), time.Duration(0))
}

func TestMatchClass(t *testing.T) {
	t.Parallel()

	require.Equal(t, ClassCompletedMatch, MatchClass(match.StatusFinished))
	require.Equal(t, ClassOnlineMatch, MatchClass(match.StatusLive))
	require.Equal(t, ClassScheduledMatch, MatchClass(match.StatusUpcoming))
}

func TestListClass(t *testing.T) {
	t.Parallel()

	require.Equal(t, ClassResultsMatches, ListClass(match.ListTypeResults))
	require.Equal(t, ClassScheduledMatches, ListClass(match.ListTypeSchedule))
}

func TestPriorities_CoverEveryClass(t *testing.T) {
	t.Parallel()

	for class := range Buckets {
		_, ok := Priorities[class]
		require.Truef(t, ok, "class %s has no priority", class)
	}
	require.Equal(t, 1, Priorities[ClassOnlineMatch])
	require.Equal(t, 4, Priorities[ClassPlayers])
	require.Equal(t, 5, Priorities[ClassTeams])
	require.Equal(t, 10, Priorities[ClassCompletedMatch])
}
