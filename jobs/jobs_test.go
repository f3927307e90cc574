package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/partfit/catalog"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/report"
	"github.com/use-agent/partfit/webhook"
)

var testListing = models.Listing{
	PartNumber:   "BR900",
	Manufacturer: "BOSCH",
	Category:     "Brake Rotor",
	InfoURL:      "https://catalog.test/info/BR900",
}

type stubService struct {
	err      error
	specErr  error
	specURLs []string
}

func (s *stubService) Fitment(_ context.Context, req models.FitmentRequest, sink report.Sink, progress catalog.ProgressFunc) (models.FitmentReport, error) {
	progress(catalog.Progress{Message: "Searching for SKU: " + req.PartID})
	if s.err != nil {
		return models.FitmentReport{}, s.err
	}

	v := models.CompatibleVehicle{Make: "FORD", Model: "F-150", StartYear: "2015", EndYear: "2017"}
	row := v.Row()
	row.Position = "Front"
	if err := sink.Begin(testListing, 1); err != nil {
		return models.FitmentReport{}, err
	}
	if err := sink.VehicleStarted(0, v); err != nil {
		return models.FitmentReport{}, err
	}
	if err := sink.VehicleFinished(row); err != nil {
		return models.FitmentReport{}, err
	}
	return models.FitmentReport{Listing: testListing, Vehicles: 1, Rows: []models.FitmentRow{row}}, nil
}

func (s *stubService) Specifications(_ context.Context, infoURL string) ([]models.MeasurementRecord, error) {
	s.specURLs = append(s.specURLs, infoURL)
	if s.specErr != nil {
		return nil, s.specErr
	}
	return []models.MeasurementRecord{{Label: "Diameter", Inch: "11.65"}}, nil
}

type delivered struct {
	mu     sync.Mutex
	events []*webhook.Event
	secret string
}

func (d *delivered) deliver(_ string, secret string, ev *webhook.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	d.secret = secret
}

func newTestRunner(t *testing.T, svc Service) (*Runner, *delivered) {
	t.Helper()
	store := NewStore(time.Hour, time.Hour)
	t.Cleanup(store.Close)
	cfg := config.ReportConfig{
		OutputDir:          t.TempDir(),
		CompatibilityFile:  "compatibility.xlsx",
		TraceFile:          "extraInfo.txt",
		SpecificationsFile: "specifications.xlsx",
	}
	r := NewRunner(svc, store, cfg, "Karshield", "server-secret")
	d := &delivered{}
	r.deliver = d.deliver
	return r, d
}

func TestRunner_Completed(t *testing.T) {
	svc := &stubService{}
	r, d := newTestRunner(t, svc)

	job, err := r.Submit(models.FitmentRequest{PartID: " BR900 ", Specifications: true, WebhookURL: "https://hooks.test/x"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	snap := job.Snapshot()
	if snap.Status != models.JobCompleted {
		t.Fatalf("status = %q, error = %+v", snap.Status, snap.Error)
	}
	if snap.Report == nil || len(snap.Report.Rows) != 1 || snap.Report.Rows[0].Position != "Front" {
		t.Errorf("report = %+v", snap.Report)
	}
	if !strings.HasPrefix(snap.Summary, "Compatibility Results for BR900") {
		t.Errorf("summary = %q", snap.Summary)
	}
	if len(snap.Files) != 3 {
		t.Errorf("files = %v, want table, trace and specifications", snap.Files)
	}
	if len(snap.Specifications) != 1 || snap.Specifications[0].Value != "11.65 in / 295.91 mm" {
		t.Errorf("specifications = %+v", snap.Specifications)
	}
	if len(svc.specURLs) != 1 || svc.specURLs[0] != testListing.InfoURL {
		t.Errorf("specifications fetched from %v", svc.specURLs)
	}

	if len(d.events) != 1 || d.events[0].Type != webhook.EventFitmentCompleted || d.events[0].JobID != job.ID() {
		t.Fatalf("events = %+v", d.events)
	}
	if d.secret != "server-secret" {
		t.Errorf("secret = %q, want the server default", d.secret)
	}
}

func TestRunner_SpecificationsFailureKeepsResult(t *testing.T) {
	r, _ := newTestRunner(t, &stubService{specErr: errors.New("blocked")})

	job, err := r.Submit(models.FitmentRequest{PartID: "BR900", Specifications: true})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	_ = r.Shutdown(context.Background())

	snap := job.Snapshot()
	if snap.Status != models.JobCompleted {
		t.Errorf("status = %q", snap.Status)
	}
	if len(snap.Files) != 2 || snap.Specifications != nil {
		t.Errorf("files = %v, specifications = %+v", snap.Files, snap.Specifications)
	}
}

func TestRunner_Failed(t *testing.T) {
	svc := &stubService{err: models.NewCatalogError(models.ErrCodeNoResults, "no results found for BR900", nil)}
	r, d := newTestRunner(t, svc)

	job, err := r.Submit(models.FitmentRequest{PartID: "BR900", WebhookURL: "https://hooks.test/x", WebhookSecret: "own"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	_ = r.Shutdown(context.Background())

	snap := job.Snapshot()
	if snap.Status != models.JobFailed || snap.Error == nil || snap.Error.Code != models.ErrCodeNoResults {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Files) != 0 || snap.Summary != "" {
		t.Errorf("files = %v, summary = %q", snap.Files, snap.Summary)
	}
	if len(d.events) != 1 || d.events[0].Type != webhook.EventFitmentFailed || d.secret != "own" {
		t.Errorf("events = %+v, secret = %q", d.events, d.secret)
	}
	if len(svc.specURLs) != 0 {
		t.Error("specifications should not run for a failed job")
	}
}

func TestRunner_Rejects(t *testing.T) {
	r, _ := newTestRunner(t, &stubService{})

	if _, err := r.Submit(models.FitmentRequest{PartID: "  "}); models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("blank part id: error = %v", err)
	}
	_ = r.Shutdown(context.Background())
	if _, err := r.Submit(models.FitmentRequest{PartID: "BR900"}); err == nil {
		t.Error("expected Submit to fail after Shutdown")
	}
}

func TestStore_Expire(t *testing.T) {
	s := NewStore(time.Hour, time.Hour)
	defer s.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	oldDone := newJob("old-done", now.Add(-2*time.Hour))
	oldDone.finish(models.FitmentReport{}, nil, "", nil, nil)
	oldRunning := newJob("old-running", now.Add(-2*time.Hour))
	oldRunning.start(report.NewMemorySink())
	fresh := newJob("fresh", now)
	fresh.finish(models.FitmentReport{}, nil, "", nil, nil)

	for _, j := range []*Job{oldDone, oldRunning, fresh} {
		s.add(j)
	}
	if got := s.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}

	s.expire()

	if _, ok := s.Get("old-done"); ok {
		t.Error("finished job past its TTL should be gone")
	}
	for _, id := range []string{"old-running", "fresh"} {
		if _, ok := s.Get(id); !ok {
			t.Errorf("job %s should be kept", id)
		}
	}
}

func TestJob_LiveReport(t *testing.T) {
	mem := report.NewMemorySink()
	j := newJob("j", time.Now())
	j.start(mem)
	j.setProgress(models.JobProgress{Message: "Processing vehicle 1/2", Vehicle: 1, Vehicles: 2})

	_ = mem.Begin(testListing, 2)
	_ = mem.VehicleFinished(models.FitmentRow{Make: "FORD"})

	snap := j.Snapshot()
	if snap.Status != models.JobProcessing || snap.Progress.Vehicle != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Report == nil || len(snap.Report.Rows) != 1 {
		t.Errorf("live report = %+v", snap.Report)
	}
}

func TestRunner_ExtraSinks(t *testing.T) {
	r, _ := newTestRunner(t, &stubService{})

	var ids []string
	mem := report.NewMemorySink()
	r.AddSink(func(jobID string) report.Sink {
		ids = append(ids, jobID)
		return mem
	})

	job, err := r.Submit(models.FitmentRequest{PartID: "BR900"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	_ = r.Shutdown(context.Background())

	if len(ids) != 1 || ids[0] != job.ID() {
		t.Errorf("factory called with %v, want [%s]", ids, job.ID())
	}
	if got := mem.Report(); len(got.Rows) != 1 || !mem.Done() {
		t.Errorf("extra sink report = %+v, closed = %v", got, mem.Done())
	}
}
