package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/volleystats/parser/internal/domain/match"
)

func TestDecode_FullDocument(t *testing.T) {
	raw := []byte(`{
		"_id": "abc123",
		"matchId": 44,
		"status": "FINISHED",
		"teams": {
			"home": {"code": "SKR", "name": "Skra", "captain": 5, "libero": [7, 12]},
			"away": {"code": "RES", "name": "Resovia"}
		},
		"scout": {
			"sets": [
				{"score": {"home": 25, "away": 21}},
				{"score": {"home": 23, "away": 25}},
				{"score": {"home": 25, "away": 18}}
			],
			"coinToss": {"start": {"winner": "home"}}
		},
		"settings": {"winningScore": 3, "regularSetWin": 25}
	}`)

	detail, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Equal(t, 44, detail.MatchID)
	require.Equal(t, match.StatusFinished, detail.Status, "status string is normalized")
	require.Equal(t, "Skra", detail.Teams.Home.Name)
	require.Equal(t, []int{7, 12}, detail.Teams.Home.Libero)
	require.Len(t, detail.Scout.Sets, 3)

	total := detail.SetScores()
	require.Equal(t, 2, total.Home)
	require.Equal(t, 1, total.Away)
}

func TestDecode_EmptyPayload(t *testing.T) {
	detail, err := Decode(nil)
	require.NoError(t, err)
	require.Nil(t, detail)
}

func TestDecode_BrokenDocument(t *testing.T) {
	_, err := Decode([]byte(`{"matchId": "not-a-number"`))
	require.Error(t, err)
}

func TestDecode_MissingFieldsDefaultToZero(t *testing.T) {
	detail, err := Decode([]byte(`{"matchId": 9}`))
	require.NoError(t, err)
	require.Equal(t, 9, detail.MatchID)
	require.Zero(t, detail.Round)
	require.True(t, detail.StartDate.IsZero())
	require.Empty(t, detail.Scout.Sets)
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)
	ended := now.Add(-time.Hour)
	started := now.Add(-2 * time.Hour)

	cases := []struct {
		name   string
		detail MatchDetail
		want   match.Status
	}{
		{"ended scout wins", MatchDetail{Scout: Scout{Ended: &ended}}, match.StatusFinished},
		{"started set means live", MatchDetail{Scout: Scout{Sets: []Set{{StartTime: &started}}}}, match.StatusLive},
		{"future start is upcoming", MatchDetail{StartDate: now.Add(time.Hour)}, match.StatusUpcoming},
		{"no date is upcoming", MatchDetail{}, match.StatusUpcoming},
		{"past start without scout is live", MatchDetail{StartDate: started}, match.StatusLive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, deriveStatus(&tc.detail, now))
		})
	}
}
