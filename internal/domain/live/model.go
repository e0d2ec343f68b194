package live

import (
	"time"

	"github.com/volleystats/parser/internal/domain/match"
)

// MatchDetail is the full play-by-play state of one match as delivered by the
// live feed: rosters, per-set events, officials and match settings. It is the
// only core entity that does not come from HTML.
type MatchDetail struct {
	ID            string          `json:"_id"`
	MatchID       int             `json:"matchId" validate:"required,gt=0"`
	Status        match.Status    `json:"status"`
	StartDate     time.Time       `json:"startDate"`
	Teams         Teams           `json:"teams"`
	City          string          `json:"city"`
	Country       string          `json:"country"`
	Hall          string          `json:"hall"`
	Phase         string          `json:"phase"`
	Round         int             `json:"round"`
	Competition   string          `json:"competition"`
	Remarks       string          `json:"remarks"`
	MatchNumber   string          `json:"matchNumber"`
	Division      string          `json:"division"`
	Category      string          `json:"category"`
	Officials     Officials       `json:"officials"`
	Scout         Scout           `json:"scout"`
	Settings      Settings        `json:"settings"`
	Version       int             `json:"version"`
	ScoutDataGrid [][]ScoutData   `json:"scoutData"`
}

type Teams struct {
	Home Team `json:"home"`
	Away Team `json:"away"`
}

type Team struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	ShortName string   `json:"shortName"`
	Captain   int      `json:"captain"`
	Libero    []int    `json:"libero"`
	Color     string   `json:"color"`
	Staff     []Staff  `json:"staff"`
	Players   []Player `json:"players"`
	Reserve   []Player `json:"reserve"`
}

type Staff struct {
	Type   string `json:"type"`
	Person Person `json:"person"`
}

type Person struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Player struct {
	Code        int    `json:"code"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	ShirtNumber int    `json:"shirtNumber"`
	IsForeign   bool   `json:"isForeign"`
}

type Official struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Level     string `json:"level"`
}

type Officials struct {
	Supervisor *Official `json:"supervisor"`
	Referee1   *Official `json:"referee1"`
	Referee2   *Official `json:"referee2"`
	Scorer1    *Official `json:"scorer1"`
	LineJudge1 *Official `json:"lineJudge1"`
	LineJudge2 *Official `json:"lineJudge2"`
}

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type StartingLineup struct {
	Home []int `json:"home"`
	Away []int `json:"away"`
}

// Event carries exactly one of the four event kinds; the others stay nil.
type Event struct {
	Rally        *RallyEvent        `json:"rally"`
	Timeout      *TimeoutEvent      `json:"timeout"`
	Substitution *SubstitutionEvent `json:"substitution"`
	Libero       *LiberoEvent       `json:"libero"`
}

type RallyEvent struct {
	Point     string     `json:"point"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

type TimeoutEvent struct {
	Team string    `json:"team"`
	Time time.Time `json:"time"`
}

type SubstitutionEvent struct {
	Team string    `json:"team"`
	Time time.Time `json:"time"`
	In   int       `json:"in"`
	Out  int       `json:"out"`
}

type LiberoEvent struct {
	Team   string `json:"team"`
	Enters bool   `json:"enters"`
	Libero int    `json:"libero"`
	Player int    `json:"player"`
}

type Set struct {
	StartTime      *time.Time     `json:"startTime"`
	EndTime        *time.Time     `json:"endTime"`
	Score          Score          `json:"score"`
	Duration       int            `json:"duration"`
	StartingLineup StartingLineup `json:"startingLineup"`
	Events         []Event        `json:"events"`
}

type ShortPlayer struct {
	Number int    `json:"number"`
	Team   string `json:"team"`
}

type CoinToss struct {
	Start CoinTossStart `json:"start"`
}

type CoinTossStart struct {
	Start    string `json:"start"`
	LeftSide string `json:"leftSide"`
	Winner   string `json:"winner"`
}

type Scout struct {
	Sets       []Set        `json:"sets"`
	CoinToss   CoinToss     `json:"coinToss"`
	BestPlayer *ShortPlayer `json:"bestPlayer"`
	MVP        *ShortPlayer `json:"mvp"`
	Ended      *time.Time   `json:"ended"`
}

// Settings is the subset of match configuration the consumers care about.
type Settings struct {
	WinningScore     int    `json:"winningScore"`
	RegularSetWin    int    `json:"regularSetWin"`
	DecidingSetWin   int    `json:"decidingSetWin"`
	GoldenSetWin     int    `json:"goldenSetWin"`
	MaxSubstitution  int    `json:"maxSubstitution"`
	MaxTimeout       int    `json:"maxTimeout"`
	TimeoutLength    []int  `json:"timeoutLength"`
	PlayersOnRoster  int    `json:"playersOnRoster"`
	Libero           bool   `json:"libero"`
	GoldenSet        bool   `json:"goldenSet"`
	Variation        string `json:"variation"`
	ChallengeOptions string `json:"challengeOptions"`
}

type Play struct {
	Team   string `json:"team"`
	Player int    `json:"player"`
	Skill  string `json:"skill"`
	Effect string `json:"effect"`
}

type ScoutData struct {
	Point string `json:"point"`
	Score Score  `json:"score"`
	Plays []Play `json:"plays"`
}

// SetScores folds the per-set scores into a won-sets tally.
func (d *MatchDetail) SetScores() Score {
	var total Score
	for _, set := range d.Scout.Sets {
		switch {
		case set.Score.Home > set.Score.Away:
			total.Home++
		case set.Score.Away > set.Score.Home:
			total.Away++
		}
	}
	return total
}
