package sanitizer

import "github.com/microcosm-cc/bluemonday"

// HTMLSanitizer reduces comment bodies to the small tag set the board
// renders: a, code, i and strong. Everything else is stripped while the
// text content is kept.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowElements("code", "i", "strong")
	return &HTMLSanitizer{policy: p}
}

func (s *HTMLSanitizer) Sanitize(in string) string {
	return s.policy.Sanitize(in)
}
