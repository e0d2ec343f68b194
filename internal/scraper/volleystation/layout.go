package volleystation

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Layout names one upstream markup generation. The site was redesigned
// without any version flag in the response, so every entity kind carries an
// ordered strategy list and falls back until one yields entities.
type Layout string

const (
	LayoutV1 Layout = "v1"
	LayoutV2 Layout = "v2"
)

// strategy is one pure extraction attempt: document plus origin for
// resolving relative links in, entities out. ok is false when the layout
// matched nothing, which triggers fallback to the next strategy.
type strategy[T any] struct {
	layout Layout
	parse  func(doc *goquery.Document, origin *url.URL) (T, bool)
}

// applyStrategies runs strategies in order and returns the first non-empty
// result along with the layout that produced it.
func applyStrategies[T any](strategies []strategy[T], doc *goquery.Document, origin *url.URL) (T, Layout, bool) {
	var zero T
	for _, s := range strategies {
		if out, ok := s.parse(doc, origin); ok {
			return out, s.layout, true
		}
	}
	return zero, "", false
}
