package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/session"
)

func testConfig() config.CatalogConfig {
	return config.CatalogConfig{
		BaseURL:            "https://catalog.test",
		Storefront:         "Karshield",
		TopCategory:        "Brake & Wheel Hub",
		MaxCategoryRetries: 3,
		StepTimeout:        time.Second,
		FitProbeTimeout:    time.Second,
		InfoFetchTimeout:   time.Second,
	}
}

// fakeNode is one element of the simulated catalog. Nodes are rebuilt from
// the catalog state on every query, so callbacks mutate the catalog.
type fakeNode struct {
	text  string
	attrs map[string]string
	kids  map[string][]*fakeNode

	// clickErrs are returned by the direct, script and pointer clicks; a
	// nil entry succeeds and runs onClick.
	clickErrs [3]error
	onClick   func()
	onType    func(string)
	onClear   func()
	onEnter   func()
}

type fakeListing struct {
	part, manufacturer, categoryText, info string
	missingPart                            bool
}

type fakeEngine struct {
	label      string
	crumb      string
	fits       bool
	footnotes  []string
	noCategory bool
}

// fakeCatalog simulates the catalog site behind the Session interface.
type fakeCatalog struct {
	// site content
	listings     []fakeListing
	noContainer  bool
	popupRows    [][]string
	engines      map[string][]fakeEngine // keyed by vehicle search text
	category     string                  // the category link text on vehicle pages
	topCategory  string
	manufacturer string
	partNumber   string
	infoHTML     string

	// failure knobs
	topClickErrs [3]error
	// topAttemptErrs fails every click strategy on the n-th lookup of the
	// top category; a nil entry falls back to topClickErrs.
	topAttemptErrs []error
	// categoryMisses hides the category link for that many top lookups.
	categoryMisses int
	topLookups     int

	// page state
	page     string
	popup    bool
	typed    string
	engine   *fakeEngine
	topOpen  bool
	filter   string
	filtered string

	navigations []string
	closed      bool
}

var _ session.Session = (*fakeCatalog)(nil)

func (f *fakeCatalog) root(sel string) []*fakeNode {
	switch sel {
	case selResultsContainer:
		if f.page == "search" && !f.noContainer {
			return []*fakeNode{{}}
		}
	case selListing:
		if f.page == "search" && !f.noContainer {
			return f.listingNodes()
		}
	case selPopupTable:
		if f.popup {
			return []*fakeNode{{}}
		}
	case selPopupRows:
		if f.popup {
			return f.popupNodes()
		}
	case selDialogX:
		if f.popup {
			return []*fakeNode{{onClick: func() { f.popup = false }}}
		}
	case selSearchInput:
		if f.page == "catalog" {
			return []*fakeNode{{
				onClear: func() { f.typed = "" },
				onType:  func(s string) { f.typed += s },
			}}
		}
	case selSuggestions:
		if f.page == "catalog" {
			if engines, ok := f.engines[f.typed]; ok {
				return f.suggestionNodes(engines)
			}
		}
	case selBreadcrumb:
		if f.engine != nil && f.engine.crumb != "" {
			return []*fakeNode{{text: f.engine.crumb}}
		}
	case selFilterInput:
		if f.page == "category" {
			return []*fakeNode{{
				onClear: func() { f.filter = "" },
				onType:  func(s string) { f.filter += s },
				onEnter: func() { f.filtered = f.filter },
			}}
		}
	case selSpecTable:
		if f.page == "info" && strings.Contains(f.infoHTML, "moreinfotable") {
			return []*fakeNode{{}}
		}
	case topCategoryXPath(f.topCategory):
		if f.page == "vehicle" {
			return []*fakeNode{{clickErrs: f.topErrs(), onClick: func() { f.topOpen = true }}}
		}
	case categoryXPath(f.category):
		if f.page == "vehicle" && f.topOpen && !f.engine.noCategory && f.topLookups > f.categoryMisses {
			return []*fakeNode{{onClick: func() { f.page = "category" }}}
		}
	case fitXPath(f.manufacturer):
		if f.page == "category" && f.filtered == f.partNumber && f.engine.fits {
			notes := make([]*fakeNode, len(f.engine.footnotes))
			for i, n := range f.engine.footnotes {
				notes[i] = &fakeNode{text: n}
			}
			return []*fakeNode{{kids: map[string][]*fakeNode{selFootnote: notes}}}
		}
	}
	return nil
}

func (f *fakeCatalog) topErrs() [3]error {
	if n := f.topLookups - 1; n >= 0 && n < len(f.topAttemptErrs) && f.topAttemptErrs[n] != nil {
		err := f.topAttemptErrs[n]
		return [3]error{err, err, err}
	}
	return f.topClickErrs
}

func (f *fakeCatalog) listingNodes() []*fakeNode {
	nodes := make([]*fakeNode, len(f.listings))
	for i, l := range f.listings {
		kids := map[string][]*fakeNode{
			selManufacturer: {{text: l.manufacturer}},
			selCategoryText: {{text: l.categoryText}},
			selPartLink:     {{onClick: func() { f.popup = true }}},
		}
		if !l.missingPart {
			kids[selPartNumber] = []*fakeNode{{text: l.part}}
		}
		if l.info != "" {
			kids[selMoreInfo] = []*fakeNode{{attrs: map[string]string{"href": l.info}}}
		}
		nodes[i] = &fakeNode{kids: kids}
	}
	return nodes
}

func (f *fakeCatalog) popupNodes() []*fakeNode {
	nodes := make([]*fakeNode, len(f.popupRows))
	for i, cells := range f.popupRows {
		kids := map[string][]*fakeNode{}
		for j, c := range cells {
			kids[popupCell(j+1)] = []*fakeNode{{text: c}}
		}
		nodes[i] = &fakeNode{kids: kids}
	}
	return nodes
}

func (f *fakeCatalog) suggestionNodes(engines []fakeEngine) []*fakeNode {
	nodes := []*fakeNode{{text: "Vehicles"}}
	for i := range engines {
		e := &engines[i]
		nodes = append(nodes, &fakeNode{text: e.label, onClick: func() {
			f.engine = e
			f.page = "vehicle"
		}})
	}
	return nodes
}

func (f *fakeCatalog) nodes(q session.Query) ([]*fakeNode, error) {
	if q.Scope == nil {
		return f.root(q.Selector), nil
	}
	parent, err := f.node(*q.Scope)
	if err != nil {
		return nil, models.NewCatalogError(models.ErrCodeStaleReference, "scope vanished", err)
	}
	return parent.kids[q.Selector], nil
}

func (f *fakeCatalog) node(r session.Ref) (*fakeNode, error) {
	nodes, err := f.nodes(r.Query)
	if err != nil {
		return nil, err
	}
	if r.Index < 0 || r.Index >= len(nodes) {
		return nil, models.NewCatalogError(models.ErrCodeNotFound, "no element at "+r.String(), nil)
	}
	return nodes[r.Index], nil
}

func (f *fakeCatalog) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return models.NewCatalogError(models.ErrCodeSession, "session context ended", err)
	}
	if f.closed {
		return models.NewCatalogError(models.ErrCodeSession, "browser closed", nil)
	}
	return nil
}

func (f *fakeCatalog) Navigate(ctx context.Context, url string) error {
	if err := f.live(ctx); err != nil {
		return err
	}
	f.navigations = append(f.navigations, url)
	f.popup, f.topOpen, f.engine = false, false, nil
	f.typed, f.filter, f.filtered = "", "", ""
	switch {
	case strings.Contains(url, "/en/partsearch/"):
		f.page = "search"
	case strings.Contains(url, "/en/catalog/"):
		f.page = "catalog"
	default:
		f.page = "info"
	}
	return nil
}

func (f *fakeCatalog) WaitVisible(ctx context.Context, q session.Query, _ time.Duration) (session.Ref, error) {
	if err := f.live(ctx); err != nil {
		return session.Ref{}, err
	}
	if q.Scope == nil && q.Selector == topCategoryXPath(f.topCategory) {
		f.topLookups++
	}
	nodes, err := f.nodes(q)
	if err != nil {
		return session.Ref{}, err
	}
	if len(nodes) == 0 {
		return session.Ref{}, models.NewCatalogError(models.ErrCodeNotFound, "element did not appear: "+q.String(), nil)
	}
	return q.At(0), nil
}

func (f *fakeCatalog) FindAll(ctx context.Context, q session.Query) ([]session.Ref, error) {
	if err := f.live(ctx); err != nil {
		return nil, err
	}
	nodes, err := f.nodes(q)
	if err != nil {
		return nil, err
	}
	refs := make([]session.Ref, len(nodes))
	for i := range nodes {
		refs[i] = q.At(i)
	}
	return refs, nil
}

func (f *fakeCatalog) Text(ctx context.Context, r session.Ref) (string, error) {
	n, err := f.element(ctx, r)
	if err != nil {
		return "", err
	}
	return n.text, nil
}

func (f *fakeCatalog) Attribute(ctx context.Context, r session.Ref, name string) (string, error) {
	n, err := f.element(ctx, r)
	if err != nil {
		return "", err
	}
	return n.attrs[name], nil
}

func (f *fakeCatalog) Click(ctx context.Context, r session.Ref) error {
	return f.click(ctx, r, 0)
}

func (f *fakeCatalog) ScriptClick(ctx context.Context, r session.Ref) error {
	return f.click(ctx, r, 1)
}

func (f *fakeCatalog) PointerClick(ctx context.Context, r session.Ref) error {
	return f.click(ctx, r, 2)
}

func (f *fakeCatalog) click(ctx context.Context, r session.Ref, strategy int) error {
	n, err := f.element(ctx, r)
	if err != nil {
		return err
	}
	if err := n.clickErrs[strategy]; err != nil {
		return err
	}
	if n.onClick != nil {
		n.onClick()
	}
	return nil
}

func (f *fakeCatalog) Clear(ctx context.Context, r session.Ref) error {
	n, err := f.element(ctx, r)
	if err != nil {
		return err
	}
	if n.onClear != nil {
		n.onClear()
	}
	return nil
}

func (f *fakeCatalog) Type(ctx context.Context, r session.Ref, text string) error {
	n, err := f.element(ctx, r)
	if err != nil {
		return err
	}
	if n.onType != nil {
		n.onType(text)
	}
	return nil
}

func (f *fakeCatalog) PressEnter(ctx context.Context, r session.Ref) error {
	n, err := f.element(ctx, r)
	if err != nil {
		return err
	}
	if n.onEnter != nil {
		n.onEnter()
	}
	return nil
}

func (f *fakeCatalog) HTML(ctx context.Context) (string, error) {
	if err := f.live(ctx); err != nil {
		return "", err
	}
	if f.page == "info" {
		return f.infoHTML, nil
	}
	return "<html></html>", nil
}

func (f *fakeCatalog) Close() error {
	f.closed = true
	return nil
}

func (f *fakeCatalog) element(ctx context.Context, r session.Ref) (*fakeNode, error) {
	if err := f.live(ctx); err != nil {
		return nil, err
	}
	return f.node(r)
}

func intercepted() error {
	return models.NewCatalogError(models.ErrCodeIntercepted, "click obstructed", nil)
}
