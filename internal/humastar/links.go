package humastar

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// SearchPath is linked from collections with rel="search" when registered.
const SearchPath = "/api/v1/parcels/search"

// skipTags mark operations that do not return JSON resources.
var skipTags = []string{"map", "tiles"}

// Links holds the RFC 8288 link headers generated for one API, keyed by
// operation path. Create it before the API so its Transformer can be
// installed in the config, then call Build once routes are registered.
type Links struct {
	mu sync.RWMutex
	m  map[string][]string
}

// NewLinks returns an empty link table.
func NewLinks() *Links {
	return &Links{m: map[string][]string{}}
}

// Build walks the OpenAPI document and generates hypermedia links.
// Call after all routes are registered.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m = map[string][]string{}
	addLink := l.add

	// Collection paths have no {param}; item paths do.
	type pathInfo struct {
		path string
		tags []string
	}
	var collections, items []pathInfo

	for p, pi := range oapi.Paths {
		tags := primaryTags(pi)
		if hasAnyTag(tags, skipTags) {
			continue
		}
		info := pathInfo{path: p, tags: tags}
		if strings.Contains(p, "{") {
			items = append(items, info)
		} else {
			collections = append(collections, info)
		}
	}
	_, hasSearch := oapi.Paths[SearchPath]

	// 1. Item → collection (rel="collection") + up (rel="up")
	for _, item := range items {
		parent := path.Dir(item.path)
		if _, ok := oapi.Paths[parent]; ok {
			addLink(item.path, parent, "collection")
			addLink(item.path, parent, "up")
		}
	}

	// 2. Collection → item template (rel="item") and entry point (rel="up")
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item.path) == coll.path {
				addLink(coll.path, item.path, "item")
			}
		}
		if coll.path != "/health" {
			addLink(coll.path, "/health", "up")
		}
		if hasSearch && coll.path != SearchPath {
			addLink(coll.path, SearchPath, "search")
		}
	}

	// 3. Action rels from HTTP methods
	for _, coll := range collections {
		if oapi.Paths[coll.path].Post != nil {
			addLink(coll.path, coll.path, "create-form")
		}
	}
	for _, item := range items {
		pi := oapi.Paths[item.path]
		if pi.Put != nil || pi.Patch != nil {
			addLink(item.path, item.path, "edit")
		}
	}

	// 4. Cross-link collections sharing a tag
	for i, a := range collections {
		for j, b := range collections {
			if i != j && sharedTag(a.tags, b.tags) != "" {
				addLink(a.path, b.path, lastSegment(b.path))
			}
		}
	}

	// 5. /health links to every collection plus discovery rels
	for _, coll := range collections {
		if coll.path != "/health" {
			addLink("/health", coll.path, lastSegment(coll.path))
		}
	}
	addLink("/health", "/openapi.json", "describedby")
	addLink("/health", "/openapi.json", "service-desc")
	addLink("/health", "/docs", "service-doc")

	// 6. describedby per resource: JSON Schema fragment in the document
	for _, all := range [][]pathInfo{collections, items} {
		for _, pi := range all {
			if ref := getResponseSchemaRef(oapi.Paths[pi.path]); ref != "" {
				addLink(pi.path, "/openapi.json#/components/schemas/"+ref, "describedby")
			}
		}
	}

	// 7. Document the links on each operation's success response
	for p, pi := range oapi.Paths {
		headers, ok := l.m[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
}

// Transformer returns a Huma Transformer that writes the generated Link
// headers, a self link for item paths, pagination links from [Pager]
// bodies and action links from [Actor] bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			u := ctx.URL()
			for _, link := range p.PaginationLinks(&u) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

// For returns the generated links for an operation path.
func (l *Links) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.m[opPath]
}

// Root returns the entry-point links, for use by non-Huma handlers.
func (l *Links) Root() []string {
	return l.For("/health")
}

// --- helpers ---

func (l *Links) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	for _, existing := range l.m[from] {
		if existing == val {
			return
		}
	}
	l.m[from] = append(l.m[from], val)
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasAnyTag(tags, want []string) bool {
	for _, t := range tags {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

func sharedTag(a, b []string) string {
	for _, at := range a {
		for _, bt := range b {
			if at == bt {
				return at
			}
		}
	}
	return ""
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success response
// so the OpenAPI document itself lists the relationships.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	// Find the success response (2xx).
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func getResponseSchemaRef(pi *huma.PathItem) string {
	if pi.Get == nil || pi.Get.Responses == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp.Content == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				// Extract schema name from $ref like "#/components/schemas/Foo"
				parts := strings.Split(mt.Schema.Ref, "/")
				return parts[len(parts)-1]
			}
		}
	}
	return ""
}

func parseLinkHeader(h string) (rel, href string) {
	// Parse `<url>; rel="name"` format.
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
