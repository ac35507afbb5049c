package humastar

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Action is a hypermedia link to an operation on a resource, rendered as
// an RFC 8288 Link header with method and schema extension parameters:
//
//	</api/v1/maps/m1>; rel="destroy"; method="DELETE"
type Action struct {
	Rel    string
	Href   string
	Method string
	Schema string
}

// Actor is implemented by response bodies whose available actions depend
// on the resource state.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Schema != "" {
		h += fmt.Sprintf(`; schema="%s"`, a.Schema)
	}
	return h
}

// LinkTransformer adds Link headers to responses: the static links of the
// operation path, a self link for item paths with the resolved URL, and the
// actions of Actor bodies.
func LinkTransformer(links map[string][]string) huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}
