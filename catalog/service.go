package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/partfit/cache"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/report"
	"github.com/use-agent/partfit/session"
	"github.com/use-agent/partfit/specs"
)

const selSpecTable = "table.moreinfotable"

// InfoFetcher downloads a static page without the browser.
type InfoFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Service is the single entry point to the catalog. The browser session
// is exclusive, so every operation that drives it waits its turn.
type Service struct {
	sess     session.Session
	cfg      config.CatalogConfig
	resolver *Resolver
	engine   *FitmentEngine
	fetcher  InfoFetcher
	cache    *cache.Cache

	turn chan struct{}
}

// NewService wires a service around sess. fetcher and c may be nil, in
// which case info pages always go through the browser and nothing is cached.
func NewService(sess session.Session, cfg config.CatalogConfig, fetcher InfoFetcher, c *cache.Cache) *Service {
	return &Service{
		sess:     sess,
		cfg:      cfg,
		resolver: NewResolver(sess, cfg),
		engine:   NewFitmentEngine(sess, cfg),
		fetcher:  fetcher,
		cache:    c,
		turn:     make(chan struct{}, 1),
	}
}

// acquire waits for exclusive use of the session or for ctx to end.
func (s *Service) acquire(ctx context.Context) (func(), error) {
	select {
	case s.turn <- struct{}{}:
		return func() { <-s.turn }, nil
	case <-ctx.Done():
		return nil, models.NewCatalogError(models.ErrCodeTimeout, "timed out waiting for the browser session", ctx.Err())
	}
}

// Listings returns the listings for partID. Unlike Resolver.Resolve an
// empty result is an ErrCodeNoResults error.
func (s *Service) Listings(ctx context.Context, partID string) ([]models.Listing, error) {
	partID = strings.TrimSpace(partID)
	if partID == "" {
		return nil, models.NewCatalogError(models.ErrCodeInvalidInput, "part_id is required", nil)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	listings, err := s.resolver.Resolve(ctx, partID)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, models.NewCatalogError(models.ErrCodeNoResults, "no results found for "+partID, nil)
	}
	return listings, nil
}

// Specifications returns the normalized specification table of an info
// page. An empty infoURL yields no records. The page is fetched over plain
// HTTP first and through the browser when that fails or shows no table.
func (s *Service) Specifications(ctx context.Context, infoURL string) ([]models.MeasurementRecord, error) {
	infoURL = strings.TrimSpace(infoURL)
	if infoURL == "" {
		return nil, nil
	}

	key := cache.Key(infoURL)
	if s.cache != nil {
		if recs, ok := s.cache.Get(key); ok {
			slog.Debug("specifications cache hit", "url", infoURL)
			return recs, nil
		}
	}

	rows, err := s.specRows(ctx, infoURL)
	if err != nil {
		return nil, err
	}
	records := specs.Normalize(rows)

	if s.cache != nil {
		s.cache.Set(key, records)
	}
	slog.Info("specifications extracted", "url", infoURL, "rows", len(rows), "records", len(records))
	return records, nil
}

func (s *Service) specRows(ctx context.Context, infoURL string) ([]specs.Row, error) {
	if s.fetcher != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.InfoFetchTimeout)
		page, err := s.fetcher.Fetch(fetchCtx, infoURL)
		cancel()
		if err == nil && specs.HasTable(page) {
			return specs.ParseTable(page)
		}
		slog.Debug("plain fetch of info page unusable, using browser", "url", infoURL, "error", err)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.sess.Navigate(ctx, infoURL); err != nil {
		return nil, err
	}
	if _, err := s.sess.WaitVisible(ctx, session.Select(selSpecTable), s.cfg.StepTimeout); err != nil {
		if models.IsSoft(err) {
			slog.Info("info page has no specification table", "url", infoURL)
			return nil, nil
		}
		return nil, err
	}
	page, err := s.sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return specs.ParseTable(page)
}

// Fitment opens the compatibility popup of the listing at req.Index in
// req.PartID's results and resolves every vehicle in it. Results stream to
// sink; the returned report holds the same rows and failures.
func (s *Service) Fitment(ctx context.Context, req models.FitmentRequest, sink report.Sink, progress ProgressFunc) (models.FitmentReport, error) {
	if err := req.Validate(); err != nil {
		return models.FitmentReport{}, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return models.FitmentReport{}, err
	}
	defer release()

	n := startNotifier(progress, progressBuffer)
	defer stopNotifier(n)

	n.notify(Progress{Message: "Searching for SKU: " + req.PartID})
	listing, vehicles, err := s.resolver.Compatibility(ctx, req.PartID, req.Index)
	if err != nil {
		return models.FitmentReport{Listing: listing}, err
	}
	n.notify(Progress{Message: "Processing vehicle compatibility...", Vehicles: len(vehicles)})

	return s.engine.run(ctx, listing, vehicles, sink, n)
}

// Close releases the browser session.
func (s *Service) Close() error {
	return s.sess.Close()
}
