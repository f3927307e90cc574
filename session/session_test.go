package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/partfit/models"
)

func TestIsXPath(t *testing.T) {
	tests := []struct {
		sel  string
		want bool
	}{
		{"//a[contains(text(), 'Brake')]", true},
		{".//span", true},
		{"(//tr)[2]", true},
		{".listings-container", false},
		{"div[id^='breadcrumb'] span.belem.active", false},
	}
	for _, tt := range tests {
		if got := IsXPath(tt.sel); got != tt.want {
			t.Errorf("IsXPath(%q) = %v, want %v", tt.sel, got, tt.want)
		}
	}
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Brake Pad", "'Brake Pad'"},
		{"O'Reilly", `"O'Reilly"`},
		{`A'B"C`, `concat('A', "'", 'B"C')`},
	}
	for _, tt := range tests {
		if got := XPathLiteral(tt.in); got != tt.want {
			t.Errorf("XPathLiteral(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRefFind_CopiesScope(t *testing.T) {
	listings := Select(".listing")
	first := listings.At(0)
	q := first.Find(".footnote")

	first.Index = 7
	if q.Scope.Index != 0 {
		t.Errorf("scope should be captured by value, got index %d", q.Scope.Index)
	}
	if got, want := q.At(2).String(), ".listing[0] >> .footnote[2]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestShouldBlock(t *testing.T) {
	blocked := blockedTypes([]string{"Image", " Font", "Script", "Bogus"})
	if _, ok := blocked[proto.NetworkResourceTypeScript]; ok {
		t.Fatal("scripts must never be blockable")
	}

	tests := []struct {
		name     string
		rt       proto.NetworkResourceType
		url      string
		trackers bool
		want     bool
	}{
		{"image", proto.NetworkResourceTypeImage, "https://www.rockauto.com/logo.png", false, true},
		{"font", proto.NetworkResourceTypeFont, "https://www.rockauto.com/f.woff", false, true},
		{"document", proto.NetworkResourceTypeDocument, "https://www.rockauto.com/en/catalog/", true, false},
		{"tracker subdomain", proto.NetworkResourceTypeScript, "https://ssl.google-analytics.com/ga.js", true, true},
		{"tracker allowed", proto.NetworkResourceTypeScript, "https://ssl.google-analytics.com/ga.js", false, false},
		{"catalog script", proto.NetworkResourceTypeScript, "https://www.rockauto.com/js/main.js", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldBlock(blocked, tt.trackers, tt.rt, tt.url); got != tt.want {
				t.Errorf("shouldBlock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	closedConn := &net.OpError{Op: "write", Net: "tcp", Err: net.ErrClosed}

	tests := []struct {
		name  string
		err   error
		code  string
		fatal bool
	}{
		{"websocket eof", io.EOF, models.ErrCodeSession, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), models.ErrCodeSession, true},
		{"closed tcp conn", closedConn, models.ErrCodeSession, true},
		{"net closed", net.ErrClosed, models.ErrCodeSession, true},
		{"target gone", cdp.ErrSessionNotFound, models.ErrCodeSession, true},
		{"stale context", cdp.ErrCtxNotFound, models.ErrCodeStaleReference, false},
		{"deadline", context.DeadlineExceeded, models.ErrCodeNotFound, false},
		{"unknown", errors.New("boom"), models.ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categorizeError(context.Background(), tt.err, "op")
			if got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
			if models.IsFatal(got) != tt.fatal {
				t.Errorf("IsFatal = %v, want %v", models.IsFatal(got), tt.fatal)
			}
		})
	}
}

func TestCategorizeError_EndedParentIsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := categorizeError(ctx, errors.New("boom"), "op"); got.Code != models.ErrCodeSession {
		t.Errorf("code = %s, want %s", got.Code, models.ErrCodeSession)
	}
}
