package skills

// Statistics groups the four per-skill stat tables shown on team and player
// detail pages. Missing values stay at zero; a partially filled table is not
// an error.
type Statistics struct {
	Serve     Serve     `json:"serve"`
	Reception Reception `json:"reception"`
	Spike     Spike     `json:"spike"`
	Block     Block     `json:"block"`
}

type Serve struct {
	Total      float64 `json:"total"`
	Aces       float64 `json:"aces"`
	Errors     float64 `json:"errors"`
	AcesPerSet float64 `json:"acesPerSet"`
}

type Reception struct {
	Total          float64 `json:"total"`
	Errors         float64 `json:"errors"`
	Negative       float64 `json:"negative"`
	Perfect        float64 `json:"perfect"`
	PercentPerfect float64 `json:"percentPerfect"`
}

type Spike struct {
	Total          float64 `json:"total"`
	Errors         float64 `json:"errors"`
	Blocked        float64 `json:"blocked"`
	Perfect        float64 `json:"perfect"`
	PercentPerfect float64 `json:"percentPerfect"`
}

type Block struct {
	Points       float64 `json:"points"`
	PointsPerSet float64 `json:"pointsPerSet"`
}
