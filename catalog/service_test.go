package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/partfit/cache"
	"github.com/use-agent/partfit/models"
)

const specPage = `<table class="moreinfotable">
<tr><td>Brake Rotor Diameter (IN)</td><td>11.65</td></tr>
<tr><td>Thickness</td><td>25mm</td></tr>
</table>`

type stubFetcher struct {
	page  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) (string, error) {
	s.calls++
	return s.page, s.err
}

func TestServiceListings(t *testing.T) {
	tests := []struct {
		name     string
		catalog  *fakeCatalog
		partID   string
		wantCode string
		wantLen  int
	}{
		{"empty part id", &fakeCatalog{}, "  ", models.ErrCodeInvalidInput, 0},
		{"no listings", &fakeCatalog{}, "NOPE", models.ErrCodeNoResults, 0},
		{"no container", &fakeCatalog{noContainer: true}, "NOPE", models.ErrCodeNotFound, 0},
		{"found", &fakeCatalog{listings: []fakeListing{
			{part: "BR900", manufacturer: "BOSCH", categoryText: "Category: Brake Rotor"},
		}}, "BR900", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.catalog, testConfig(), nil, nil)
			listings, err := svc.Listings(context.Background(), tt.partID)
			if got := models.CodeOf(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (err = %v)", got, tt.wantCode, err)
			}
			if len(listings) != tt.wantLen {
				t.Errorf("got %d listings, want %d", len(listings), tt.wantLen)
			}
		})
	}
}

func TestServiceSpecifications_FetchAndCache(t *testing.T) {
	f := &fakeCatalog{}
	fetcher := &stubFetcher{page: specPage}
	c := cache.New(10, time.Hour)
	defer c.Close()
	svc := NewService(f, testConfig(), fetcher, c)

	for i := 0; i < 2; i++ {
		recs, err := svc.Specifications(context.Background(), "https://catalog.test/info/1")
		if err != nil {
			t.Fatalf("Specifications() error = %v", err)
		}
		if len(recs) != 2 || recs[0].Inch != "11.65" || recs[1].Millimeter != "25" {
			t.Fatalf("records = %+v", recs)
		}
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1 (second call cached)", fetcher.calls)
	}
	if len(f.navigations) != 0 {
		t.Errorf("browser should not be used when the plain fetch works: %v", f.navigations)
	}
}

func TestServiceSpecifications_BrowserFallback(t *testing.T) {
	f := &fakeCatalog{infoHTML: specPage}
	svc := NewService(f, testConfig(), &stubFetcher{err: errors.New("blocked")}, nil)

	recs, err := svc.Specifications(context.Background(), "https://catalog.test/info/1")
	if err != nil {
		t.Fatalf("Specifications() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %+v", recs)
	}
	if len(f.navigations) != 1 || f.navigations[0] != "https://catalog.test/info/1" {
		t.Errorf("navigations = %v", f.navigations)
	}
}

func TestServiceSpecifications_NoTable(t *testing.T) {
	f := &fakeCatalog{infoHTML: "<p>discontinued</p>"}
	svc := NewService(f, testConfig(), &stubFetcher{page: "<p>discontinued</p>"}, nil)

	recs, err := svc.Specifications(context.Background(), "https://catalog.test/info/2")
	if err != nil {
		t.Fatalf("Specifications() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records = %+v, want none", recs)
	}
}

func TestServiceSpecifications_EmptyURL(t *testing.T) {
	svc := NewService(&fakeCatalog{}, testConfig(), nil, nil)
	recs, err := svc.Specifications(context.Background(), "")
	if err != nil || recs != nil {
		t.Errorf("Specifications(\"\") = %v, %v; want nil, nil", recs, err)
	}
}

func TestService_WaitsForSession(t *testing.T) {
	svc := NewService(&fakeCatalog{}, testConfig(), nil, nil)
	release, err := svc.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Listings(ctx, "BR900")
	if models.CodeOf(err) != models.ErrCodeTimeout {
		t.Errorf("error = %v, want %s while the session is busy", err, models.ErrCodeTimeout)
	}
}
