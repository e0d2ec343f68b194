package competition

import "strings"

// Competition is one tournament/league source. The id is globally unique and
// joins every descendant entity (teams, players, matches).
type Competition struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PageURL joins the competition base URL with a sub-path such as "teams/".
func (c Competition) PageURL(subPath string) string {
	base := strings.TrimRight(strings.TrimSpace(c.URL), "/")
	subPath = strings.Trim(strings.TrimSpace(subPath), "/")
	if subPath == "" {
		return base + "/"
	}
	return base + "/" + subPath + "/"
}

func (c Competition) Valid() bool {
	return c.ID > 0 && strings.TrimSpace(c.URL) != ""
}
