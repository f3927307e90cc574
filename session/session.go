// Package session defines the browser automation capability the catalog
// code drives, and a go-rod implementation of it.
//
// Element handles are never held across calls. A Ref names an element as
// "the i-th live match of this query", and every operation re-runs the
// query before touching the element, so a navigation can make a Ref miss
// but never make it point at a dead node.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Session is a single browser tab. Implementations are not safe for
// concurrent use; callers serialize access.
//
// Errors are *models.CatalogError values: ErrCodeNotFound when an element
// does not appear in time, ErrCodeIntercepted when a click is obstructed,
// ErrCodeStaleReference when a scope element vanished, ErrCodeSession when
// the browser itself is gone or the caller's context ended.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, q Query, timeout time.Duration) (Ref, error)
	FindAll(ctx context.Context, q Query) ([]Ref, error)
	Text(ctx context.Context, r Ref) (string, error)
	Attribute(ctx context.Context, r Ref, name string) (string, error)

	// Click performs a native click. ScriptClick dispatches element.click()
	// from page script. PointerClick moves the mouse over the element and
	// clicks at that point.
	Click(ctx context.Context, r Ref) error
	ScriptClick(ctx context.Context, r Ref) error
	PointerClick(ctx context.Context, r Ref) error

	Clear(ctx context.Context, r Ref) error
	Type(ctx context.Context, r Ref, text string) error
	PressEnter(ctx context.Context, r Ref) error

	// HTML returns the current document's outer HTML.
	HTML(ctx context.Context) (string, error)

	Close() error
}

// Query locates a set of elements, optionally under the element addressed
// by Scope. Selectors starting with "/", "./" or "(" are XPath, anything
// else is CSS.
type Query struct {
	Scope    *Ref
	Selector string
}

// Select builds a document-level query.
func Select(selector string) Query {
	return Query{Selector: selector}
}

// At addresses the i-th element of the query's live result.
func (q Query) At(i int) Ref {
	return Ref{Query: q, Index: i}
}

func (q Query) String() string {
	if q.Scope == nil {
		return q.Selector
	}
	return q.Scope.String() + " >> " + q.Selector
}

// Ref addresses one element as position Index of a query's live result.
type Ref struct {
	Query
	Index int
}

// Find builds a query scoped under r.
func (r Ref) Find(selector string) Query {
	scope := r
	return Query{Scope: &scope, Selector: selector}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s[%d]", r.Query.String(), r.Index)
}

// IsXPath reports whether selector should be evaluated as XPath.
func IsXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") ||
		strings.HasPrefix(selector, "./") ||
		strings.HasPrefix(selector, "(")
}

// XPathLiteral quotes s as an XPath string literal. Strings holding both
// quote kinds are split into a concat() expression.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}
