package jobs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/use-agent/partfit/catalog"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/report"
	"github.com/use-agent/partfit/specs"
	"github.com/use-agent/partfit/webhook"
)

// Service is the part of catalog.Service a job needs.
type Service interface {
	Fitment(ctx context.Context, req models.FitmentRequest, sink report.Sink, progress catalog.ProgressFunc) (models.FitmentReport, error)
	Specifications(ctx context.Context, infoURL string) ([]models.MeasurementRecord, error)
}

// Runner starts fitment jobs and writes each job's reports into its own
// directory under the configured output dir.
type Runner struct {
	svc        Service
	store      *Store
	cfg        config.ReportConfig
	storefront string
	secret     string

	// deliver sends the completion webhook.
	deliver func(url, secret string, ev *webhook.Event)

	// extra builds additional per-job sinks, such as database persistence.
	extra []func(jobID string) report.Sink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewRunner returns a runner storing its jobs in store. webhookSecret signs
// callbacks for requests that bring no secret of their own.
func NewRunner(svc Service, store *Store, cfg config.ReportConfig, storefront, webhookSecret string) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		svc:        svc,
		store:      store,
		cfg:        cfg,
		storefront: storefront,
		secret:     webhookSecret,
		deliver: func(url, secret string, ev *webhook.Event) {
			webhook.DeliverAsync(url, secret, ev)
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddSink registers a sink factory called once per job. Call it before
// the first Submit.
func (r *Runner) AddSink(factory func(jobID string) report.Sink) {
	r.extra = append(r.extra, factory)
}

// Store returns the runner's job store.
func (r *Runner) Store() *Store { return r.store }

// Submit validates req and starts a job for it.
func (r *Runner) Submit(req models.FitmentRequest) (*Job, error) {
	if r.closed.Load() {
		return nil, models.NewCatalogError(models.ErrCodeSession, "server is shutting down", nil)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := newJob("fit-"+uuid.NewString(), r.store.now())
	r.store.add(job)

	r.wg.Add(1)
	go r.run(job, req)

	slog.Info("fitment job queued", "id", job.id, "part_id", req.PartID, "index", req.Index)
	return job, nil
}

// Shutdown stops accepting jobs and waits for running ones. When ctx ends
// first the running jobs are cancelled and ctx's error is returned once
// they have stopped.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.closed.Store(true)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) run(job *Job, req models.FitmentRequest) {
	defer r.wg.Done()

	dir := filepath.Join(r.cfg.OutputDir, job.id)
	mem := report.NewMemorySink()
	job.start(mem)

	fileSink, err := report.NewFileSink(dir, r.cfg, r.storefront)
	if err != nil {
		r.complete(job, req, models.FitmentReport{}, nil, nil, err)
		return
	}
	sink := report.MultiSink{fileSink, mem}
	for _, factory := range r.extra {
		sink = append(sink, factory(job.id))
	}

	rep, runErr := r.svc.Fitment(r.ctx, req, sink, func(p catalog.Progress) {
		job.setProgress(models.JobProgress(p))
	})
	if err := sink.Close(); err != nil {
		slog.Warn("closing job reports failed", "id", job.id, "error", err)
		if runErr == nil {
			runErr = models.NewCatalogError(models.ErrCodeInternal, "failed to write reports", err)
		}
	}
	files := existing(fileSink.TablePath(), fileSink.TracePath())

	var specRows []models.SpecificationRow
	if runErr == nil && req.Specifications {
		var path string
		specRows, path = r.specifications(job, rep.Listing, dir)
		if path != "" {
			files = append(files, path)
		}
	}

	r.complete(job, req, rep, specRows, files, runErr)
}

// specifications extracts and writes the listing's specification sheet. A
// failure here is logged and leaves the fitment result intact.
func (r *Runner) specifications(job *Job, listing models.Listing, dir string) ([]models.SpecificationRow, string) {
	if listing.InfoURL == "" {
		slog.Info("listing has no info page", "id", job.id, "part", listing.PartNumber)
		return nil, ""
	}
	job.setProgress(models.JobProgress{Message: "Extracting specifications"})

	records, err := r.svc.Specifications(r.ctx, listing.InfoURL)
	if err != nil {
		slog.Warn("specification extraction failed", "id", job.id, "url", listing.InfoURL, "error", err)
		return nil, ""
	}
	rows := specs.RenderAll(records)

	path := filepath.Join(dir, r.cfg.SpecificationsFile)
	if err := report.WriteSpecifications(path, records); err != nil {
		slog.Warn("writing specifications failed", "id", job.id, "error", err)
		return rows, ""
	}
	return rows, path
}

func (r *Runner) complete(job *Job, req models.FitmentRequest, rep models.FitmentReport, specRows []models.SpecificationRow, files []string, err error) {
	var summary string
	if rep.Listing.PartNumber != "" {
		summary = report.Summary(rep)
	}

	var detail *models.ErrorDetail
	if err != nil {
		detail = models.DetailOf(err)
	}
	job.finish(rep, specRows, summary, files, detail)

	eventType := webhook.EventFitmentCompleted
	if err != nil {
		eventType = webhook.EventFitmentFailed
		slog.Error("fitment job failed", "id", job.id, "part_id", req.PartID, "error", err)
	} else {
		slog.Info("fitment job finished", "id", job.id, "part_id", req.PartID,
			"vehicles", rep.Vehicles, "rows", len(rep.Rows), "failures", len(rep.Failures))
	}

	if req.WebhookURL != "" {
		secret := req.WebhookSecret
		if secret == "" {
			secret = r.secret
		}
		r.deliver(req.WebhookURL, secret, webhook.NewEvent(eventType, job.id, job.Snapshot()))
	}
}


func existing(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
