package live

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/volleystats/parser/internal/domain/match"
)

// Decode unmarshals one raw play-by-play document. Missing numeric and date
// fields default to zero values; only a structurally broken document is an
// error. The status field is derived from the scout block when the feed did
// not send one.
func Decode(raw []byte) (*MatchDetail, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var detail MatchDetail
	if err := sonic.Unmarshal(raw, &detail); err != nil {
		return nil, errors.Wrap(err, "decode play-by-play document")
	}

	if detail.Status == "" {
		detail.Status = deriveStatus(&detail, time.Now())
	} else {
		detail.Status = match.NormalizeStatus(string(detail.Status))
	}

	return &detail, nil
}

func deriveStatus(d *MatchDetail, now time.Time) match.Status {
	if d.Scout.Ended != nil {
		return match.StatusFinished
	}
	for _, set := range d.Scout.Sets {
		if set.StartTime != nil {
			return match.StatusLive
		}
	}
	if !d.StartDate.IsZero() && d.StartDate.After(now) {
		return match.StatusUpcoming
	}
	if d.StartDate.IsZero() {
		return match.StatusUpcoming
	}
	return match.StatusLive
}
