package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/ysmood/gson"
	"golang.org/x/time/rate"
)

// RodSession drives one Chromium tab through go-rod.
type RodSession struct {
	browser   *rod.Browser
	page      *rod.Page
	opTimeout time.Duration
	navPacer  *rate.Limiter
	hijack    *rod.HijackRouter
}

var _ Session = (*RodSession)(nil)

// Launch starts a browser and opens the tab every catalog operation runs in.
func Launch(browserCfg config.BrowserConfig, catalogCfg config.CatalogConfig) (*RodSession, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCatalogError(models.ErrCodeSession, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", browserCfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCatalogError(models.ErrCodeSession, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, models.NewCatalogError(models.ErrCodeSession, "failed to open page", err)
	}

	// Stealth and headers must be installed before the first navigation.
	if browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	if browserCfg.UserAgent != "" {
		if uaErr := (proto.NetworkSetUserAgentOverride{UserAgent: browserCfg.UserAgent}).Call(page); uaErr != nil {
			slog.Warn("user agent override failed", "error", uaErr)
		}
	}
	if browserCfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": browserCfg.AcceptLanguage}),
		}.Call(page)
	}

	hijack := setupHijack(page, browserCfg.BlockResources, browserCfg.BlockTrackers)

	pace := rate.Inf
	if catalogCfg.NavigationsPerSecond > 0 {
		pace = rate.Limit(catalogCfg.NavigationsPerSecond)
	}

	return &RodSession{
		browser:   browser,
		page:      page,
		opTimeout: catalogCfg.StepTimeout,
		navPacer:  rate.NewLimiter(pace, 1),
		hijack:    hijack,
	}, nil
}

// Navigate loads url and waits for the load event.
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	if err := s.navPacer.Wait(ctx); err != nil {
		return categorizeError(ctx, err, "navigation pacing interrupted")
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	p := s.page.Context(navCtx)

	if err := p.Navigate(url); err != nil {
		return categorizeError(ctx, err, "navigation failed: "+url)
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("load event did not arrive, proceeding with current DOM", "url", url, "error", err)
	}
	return nil
}

// WaitVisible waits up to timeout for the first match of q to become
// visible and returns its Ref.
func (s *RodSession) WaitVisible(ctx context.Context, q Query, timeout time.Duration) (Ref, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := s.page.Context(waitCtx)

	var scope *rod.Element
	if q.Scope != nil {
		var err error
		if scope, err = s.resolve(ctx, p, *q.Scope); err != nil {
			return Ref{}, err
		}
	}

	el, err := first(p, scope, q.Selector)
	if err != nil {
		return Ref{}, categorizeError(ctx, err, "element did not appear: "+q.String())
	}
	if err := el.WaitVisible(); err != nil {
		return Ref{}, categorizeError(ctx, err, "element never became visible: "+q.String())
	}
	return q.At(0), nil
}

// FindAll returns a Ref for every current match of q without waiting.
func (s *RodSession) FindAll(ctx context.Context, q Query) ([]Ref, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	p := s.page.Context(opCtx)

	els, err := s.query(ctx, p, q)
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, len(els))
	for i := range els {
		refs[i] = q.At(i)
	}
	return refs, nil
}

func (s *RodSession) Text(ctx context.Context, r Ref) (string, error) {
	var text string
	err := s.withElement(ctx, r, func(el *rod.Element) error {
		var err error
		text, err = el.Text()
		return err
	})
	return text, err
}

// Attribute returns "" when the element has no such attribute.
func (s *RodSession) Attribute(ctx context.Context, r Ref, name string) (string, error) {
	var value string
	err := s.withElement(ctx, r, func(el *rod.Element) error {
		attr, err := el.Attribute(name)
		if err != nil {
			return err
		}
		if attr != nil {
			value = *attr
		}
		return nil
	})
	return value, err
}

func (s *RodSession) Click(ctx context.Context, r Ref) error {
	return s.withElement(ctx, r, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (s *RodSession) ScriptClick(ctx context.Context, r Ref) error {
	return s.withElement(ctx, r, func(el *rod.Element) error {
		_, err := el.Eval(`() => this.click()`)
		return err
	})
}

func (s *RodSession) PointerClick(ctx context.Context, r Ref) error {
	return s.withElement(ctx, r, func(el *rod.Element) error {
		if err := el.ScrollIntoView(); err != nil {
			return err
		}
		shape, err := el.Shape()
		if err != nil {
			return err
		}
		pt := shape.OnePointInside()
		if pt == nil {
			return &rod.InvisibleShapeError{Element: el}
		}
		mouse := el.Page().Mouse
		if err := mouse.MoveTo(*pt); err != nil {
			return err
		}
		return mouse.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (s *RodSession) Clear(ctx context.Context, r Ref) error {
	return s.withElement(ctx, r, func(el *rod.Element) error {
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input("")
	})
}

func (s *RodSession) Type(ctx context.Context, r Ref, text string) error {
	return s.withElement(ctx, r, func(el *rod.Element) error {
		return el.Input(text)
	})
}

func (s *RodSession) PressEnter(ctx context.Context, r Ref) error {
	return s.withElement(ctx, r, func(el *rod.Element) error {
		return el.Type(input.Enter)
	})
}

func (s *RodSession) HTML(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	html, err := s.page.Context(opCtx).HTML()
	if err != nil {
		return "", categorizeError(ctx, err, "failed to read page HTML")
	}
	return html, nil
}

// Close shuts the tab and kills the browser process.
func (s *RodSession) Close() error {
	slog.Info("session shutting down: closing browser")
	if s.hijack != nil {
		_ = s.hijack.Stop()
	}
	_ = s.page.Close()
	return s.browser.Close()
}

// withElement re-resolves r under a per-operation deadline and runs fn on
// the live element.
func (s *RodSession) withElement(ctx context.Context, r Ref, fn func(*rod.Element) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	p := s.page.Context(opCtx)

	el, err := s.resolve(ctx, p, r)
	if err != nil {
		return err
	}
	if err := fn(el); err != nil {
		return categorizeError(ctx, err, "element operation failed: "+r.String())
	}
	return nil
}

// resolve walks r's scope chain from the document down, re-running every
// query against the live DOM.
func (s *RodSession) resolve(ctx context.Context, p *rod.Page, r Ref) (*rod.Element, error) {
	els, err := s.query(ctx, p, r.Query)
	if err != nil {
		return nil, err
	}
	if r.Index < 0 || r.Index >= len(els) {
		return nil, models.NewCatalogError(models.ErrCodeNotFound, "no element at "+r.String(), nil)
	}
	return els[r.Index], nil
}

func (s *RodSession) query(ctx context.Context, p *rod.Page, q Query) (rod.Elements, error) {
	var scope *rod.Element
	if q.Scope != nil {
		var err error
		scope, err = s.resolve(ctx, p, *q.Scope)
		if err != nil {
			if models.CodeOf(err) == models.ErrCodeNotFound {
				return nil, models.NewCatalogError(models.ErrCodeStaleReference, "scope vanished: "+q.Scope.String(), err)
			}
			return nil, err
		}
	}

	var (
		els rod.Elements
		err error
	)
	switch {
	case scope == nil && IsXPath(q.Selector):
		els, err = p.ElementsX(q.Selector)
	case scope == nil:
		els, err = p.Elements(q.Selector)
	case IsXPath(q.Selector):
		els, err = scope.ElementsX(q.Selector)
	default:
		els, err = scope.Elements(q.Selector)
	}
	if err != nil {
		return nil, categorizeError(ctx, err, "query failed: "+q.String())
	}
	return els, nil
}

// first waits for the first match of selector, retrying until the page
// context expires.
func first(p *rod.Page, scope *rod.Element, selector string) (*rod.Element, error) {
	switch {
	case scope == nil && IsXPath(selector):
		return p.ElementX(selector)
	case scope == nil:
		return p.Element(selector)
	case IsXPath(selector):
		return scope.ElementX(selector)
	default:
		return scope.Element(selector)
	}
}

// categorizeError wraps raw rod errors into typed CatalogErrors. parent is
// the caller's context: when it has ended the session cannot continue,
// while a deadline on a child context is an ordinary step timeout.
func categorizeError(parent context.Context, err error, msg string) *models.CatalogError {
	var (
		covered   *rod.CoveredError
		noPointer *rod.NoPointerEventsError
		invisible *rod.InvisibleShapeError
		notFound  *rod.ElementNotFoundError
		existing  *models.CatalogError
		netErr    *net.OpError
	)
	switch {
	case errors.As(err, &existing):
		return existing
	case parent.Err() != nil:
		return models.NewCatalogError(models.ErrCodeSession, "session context ended", parent.Err())
	case errors.As(err, &covered), errors.As(err, &noPointer), errors.As(err, &invisible):
		return models.NewCatalogError(models.ErrCodeIntercepted, msg, err)
	case errors.As(err, &notFound), errors.Is(err, context.DeadlineExceeded):
		return models.NewCatalogError(models.ErrCodeNotFound, msg, err)
	case errors.Is(err, cdp.ErrCtxNotFound), errors.Is(err, cdp.ErrCtxDestroyed), errors.Is(err, cdp.ErrObjNotFound):
		return models.NewCatalogError(models.ErrCodeStaleReference, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCatalogError(models.ErrCodeSession, "session canceled", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed), errors.As(err, &netErr), errors.Is(err, cdp.ErrSessionNotFound):
		// The devtools websocket is gone; no later call can succeed.
		return models.NewCatalogError(models.ErrCodeSession, "browser connection lost", err)
	default:
		return models.NewCatalogError(models.ErrCodeInternal, msg, err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
