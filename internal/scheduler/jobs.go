package scheduler

import (
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/volleystats/parser/internal/cache"
	"github.com/volleystats/parser/internal/domain/match"
)

var jobJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JobType names one unit of refresh work.
type JobType string

const (
	// JobCompetitionProbe sweeps the competition id space looking for
	// competitions not yet in the cache.
	JobCompetitionProbe JobType = "competition_probe"
	// JobCompetition refreshes one competition and fans out to its
	// descendant entities.
	JobCompetition JobType = "competition"
	JobTeams       JobType = "teams"
	JobPlayers     JobType = "players"
	JobTeam        JobType = "team"
	JobPlayer      JobType = "player"
	// JobScheduledMatches and JobResultsMatches refresh the two match list
	// pages and fan out per-match jobs.
	JobScheduledMatches JobType = "scheduled_matches"
	JobResultsMatches   JobType = "results_matches"
	JobMatch            JobType = "match"
)

// Job is one queued unit of work. Only the fields relevant to its type are
// set; the rest stay zero.
type Job struct {
	ID            string          `json:"id"`
	Type          JobType         `json:"type"`
	CompetitionID int             `json:"competitionId,omitempty"`
	TeamID        string          `json:"teamId,omitempty"`
	PlayerID      int             `json:"playerId,omitempty"`
	MatchID       int             `json:"matchId,omitempty"`
	// Class overrides the type's default tuning. Match jobs need it: the
	// same job type runs with live, upcoming or finished cadence depending
	// on the match it refreshes.
	Class cache.EntityClass `json:"class,omitempty"`
}

// NewJob assigns a fresh instance id. The instance id distinguishes queue
// entries in logs; deduplication uses DedupID instead.
func NewJob(jobType JobType) Job {
	return Job{ID: uuid.NewString(), Type: jobType}
}

// DedupID identifies the logical work regardless of instance: two jobs with
// the same DedupID refresh the same entity and only one may sit in the
// dedup window at a time.
func (j Job) DedupID() string {
	switch j.Type {
	case JobCompetitionProbe:
		return string(j.Type)
	case JobTeam:
		return fmt.Sprintf("%s:%d:%s", j.Type, j.CompetitionID, j.TeamID)
	case JobPlayer:
		return fmt.Sprintf("%s:%d:%d", j.Type, j.CompetitionID, j.PlayerID)
	case JobMatch:
		return fmt.Sprintf("%s:%d", j.Type, j.MatchID)
	default:
		return fmt.Sprintf("%s:%d", j.Type, j.CompetitionID)
	}
}

// jobClass is the default tuning class per job type. Match jobs carry an
// explicit class and never consult this table.
var jobClass = map[JobType]cache.EntityClass{
	JobCompetitionProbe: cache.ClassCompetition,
	JobCompetition:      cache.ClassCompetition,
	JobTeams:            cache.ClassTeams,
	JobPlayers:          cache.ClassPlayers,
	JobTeam:             cache.ClassTeam,
	JobPlayer:           cache.ClassPlayer,
	JobScheduledMatches: cache.ClassScheduledMatches,
	JobResultsMatches:   cache.ClassResultsMatches,
}

// class resolves the tuning class for this job. A match job missing its
// explicit class falls back to the upcoming cadence rather than resolving to
// an unknown bucket.
func (j Job) class() cache.EntityClass {
	if j.Class != "" {
		return j.Class
	}
	if class, ok := jobClass[j.Type]; ok {
		return class
	}
	return cache.ClassScheduledMatch
}

func (j Job) priority() int {
	return cache.Priorities[j.class()]
}

func (j Job) listType() match.ListType {
	if j.Type == JobResultsMatches {
		return match.ListTypeResults
	}
	return match.ListTypeSchedule
}

// encodeJob and decodeJob are the wire codec for queue entries. Payloads sit
// serialized while queued, the way a broker-backed queue would hold them.
func encodeJob(job Job) ([]byte, error) {
	return jobJSON.Marshal(job)
}

func decodeJob(payload []byte) (Job, error) {
	var job Job
	err := jobJSON.Unmarshal(payload, &job)
	return job, err
}
