package humastar

import (
	"fmt"
	"strings"
)

// Action is a state-dependent hypermedia action link.
// Response bodies implement the Actor interface to emit conditional
// RFC 8288 Link headers with method and title extension parameters.
//
// Example Link header output:
//
//	</api/v1/map/abc/confirm>; rel="confirm"; method="POST"; title="Confirm Group 1"
type Action struct {
	Rel    string // custom rel, e.g. "confirm", "compare"
	Href   string // target URL
	Method string // HTTP method
	Title  string // optional human-readable label
}

// Actor is implemented by response bodies that provide state-dependent actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, strings.ReplaceAll(a.Title, `"`, `'`))
	}
	return b.String()
}

// ActionDef is a reusable action template. Pattern has one %s verb for
// the resource ID.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// For generates the concrete action for id. A non-empty title overrides
// the definition's.
func (d ActionDef) For(id, title string) Action {
	if title == "" {
		title = d.Title
	}
	return Action{Rel: d.Rel, Href: fmt.Sprintf(d.Pattern, id), Method: d.Method, Title: title}
}
