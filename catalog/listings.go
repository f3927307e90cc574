package catalog

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/session"
)

// categoryPrefixLen is the width of the cosmetic label the catalog puts in
// front of every listing's category text.
const categoryPrefixLen = 10

// categorySuffix is the first parenthesis or bracket group and everything
// after it.
var categorySuffix = regexp.MustCompile(`(?s)\s[\(\[].*$`)

// Resolver reads search results and compatibility popups.
type Resolver struct {
	sess session.Session
	cfg  config.CatalogConfig
}

func NewResolver(sess session.Session, cfg config.CatalogConfig) *Resolver {
	return &Resolver{sess: sess, cfg: cfg}
}

// Resolve searches the catalog for partID and returns its listings in page
// order. A results container with no listings yields an empty slice and no
// error; a container that never renders is ErrCodeNotFound. Listings
// missing a part number, manufacturer or category are skipped.
func (r *Resolver) Resolve(ctx context.Context, partID string) ([]models.Listing, error) {
	if err := r.openResults(ctx, partID); err != nil {
		return nil, err
	}

	refs, err := r.sess.FindAll(ctx, session.Select(selListing))
	if err != nil {
		return nil, err
	}

	listings := make([]models.Listing, 0, len(refs))
	for _, ref := range refs {
		l, err := r.readListing(ctx, ref)
		if err != nil {
			if models.IsSoft(err) {
				slog.Debug("skipping partial listing", "part", partID, "index", ref.Index, "error", err)
				continue
			}
			return nil, err
		}
		listings = append(listings, l)
	}

	slog.Info("listings resolved", "part", partID, "found", len(refs), "kept", len(listings))
	return listings, nil
}

// Compatibility reopens partID's results, reads the listing at index and
// opens its compatibility popup. It returns the freshly read listing and
// one vehicle per popup row; rows missing a cell are skipped.
func (r *Resolver) Compatibility(ctx context.Context, partID string, index int) (models.Listing, []models.CompatibleVehicle, error) {
	if err := r.openResults(ctx, partID); err != nil {
		return models.Listing{}, nil, err
	}

	refs, err := r.sess.FindAll(ctx, session.Select(selListing))
	if err != nil {
		return models.Listing{}, nil, err
	}
	if index < 0 || index >= len(refs) {
		return models.Listing{}, nil, models.NewCatalogError(models.ErrCodeNotFound, "listing no longer available", nil)
	}

	ref := refs[index]
	listing, err := r.readListing(ctx, ref)
	if err != nil {
		return models.Listing{}, nil, err
	}

	if err := SafeClick(ctx, r.sess, ref.Find(selPartLink).At(0)); err != nil {
		return listing, nil, err
	}
	if _, err := r.sess.WaitVisible(ctx, session.Select(selPopupTable), r.cfg.StepTimeout); err != nil {
		return listing, nil, err
	}

	rows, err := r.sess.FindAll(ctx, session.Select(selPopupRows))
	if err != nil {
		return listing, nil, err
	}

	vehicles := make([]models.CompatibleVehicle, 0, len(rows))
	for _, row := range rows {
		v, err := r.readVehicle(ctx, row)
		if err != nil {
			if models.IsSoft(err) {
				continue
			}
			return listing, nil, err
		}
		vehicles = append(vehicles, v)
	}

	r.closeDialog(ctx)

	slog.Info("compatibility collected", "part", listing.PartNumber, "vehicles", len(vehicles))
	return listing, vehicles, nil
}

func (r *Resolver) openResults(ctx context.Context, partID string) error {
	if err := r.sess.Navigate(ctx, searchURL(r.cfg.BaseURL, partID)); err != nil {
		return err
	}
	if _, err := r.sess.WaitVisible(ctx, session.Select(selResultsContainer), r.cfg.StepTimeout); err != nil {
		if models.IsFatal(err) {
			return err
		}
		return models.NewCatalogError(models.ErrCodeNotFound, "results container never appeared for "+partID, err)
	}
	return nil
}

func (r *Resolver) readListing(ctx context.Context, ref session.Ref) (models.Listing, error) {
	partNumber, err := r.firstText(ctx, ref.Find(selPartNumber))
	if err != nil {
		return models.Listing{}, err
	}
	manufacturer, err := r.firstText(ctx, ref.Find(selManufacturer))
	if err != nil {
		return models.Listing{}, err
	}
	categoryText, err := r.firstText(ctx, ref.Find(selCategoryText))
	if err != nil {
		return models.Listing{}, err
	}

	l := models.Listing{
		Index:        ref.Index,
		PartNumber:   partNumber,
		Manufacturer: manufacturer,
		Category:     parseCategory(categoryText),
	}

	// The info button is optional.
	if infos, err := r.sess.FindAll(ctx, ref.Find(selMoreInfo)); err == nil && len(infos) > 0 {
		if href, err := r.sess.Attribute(ctx, infos[0], "href"); err == nil {
			l.InfoURL = strings.TrimSpace(href)
		}
	} else if models.IsFatal(err) {
		return models.Listing{}, err
	}
	return l, nil
}

func (r *Resolver) readVehicle(ctx context.Context, row session.Ref) (models.CompatibleVehicle, error) {
	var cells [3]string
	for i := range cells {
		text, err := r.firstText(ctx, row.Find(popupCell(i+1)))
		if err != nil {
			return models.CompatibleVehicle{}, err
		}
		cells[i] = text
	}
	start, end := parseYears(cells[2])
	return models.CompatibleVehicle{
		Make:      cells[0],
		Model:     cells[1],
		StartYear: start,
		EndYear:   end,
	}, nil
}

// closeDialog dismisses the popup if a close button shows up. Failure is
// harmless since the next step navigates away.
func (r *Resolver) closeDialog(ctx context.Context) {
	ref, err := r.sess.WaitVisible(ctx, session.Select(selDialogX), r.cfg.StepTimeout)
	if err != nil {
		slog.Debug("compatibility dialog close button not found", "error", err)
		return
	}
	if err := SafeClick(ctx, r.sess, ref); err != nil {
		slog.Debug("compatibility dialog did not close", "error", err)
	}
}

// firstText reads the trimmed text of the first match of q, or
// ErrCodeNotFound when nothing matches.
func (r *Resolver) firstText(ctx context.Context, q session.Query) (string, error) {
	return firstText(ctx, r.sess, q)
}

func firstText(ctx context.Context, sess session.Session, q session.Query) (string, error) {
	refs, err := sess.FindAll(ctx, q)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", models.NewCatalogError(models.ErrCodeNotFound, "no element for "+q.String(), nil)
	}
	text, err := sess.Text(ctx, refs[0])
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// parseCategory drops the fixed-width label prefix and any trailing
// parenthesized or bracketed qualifier.
func parseCategory(text string) string {
	runes := []rune(text)
	if len(runes) <= categoryPrefixLen {
		return ""
	}
	rest := string(runes[categoryPrefixLen:])
	if loc := categorySuffix.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return strings.TrimSpace(rest)
}

// parseYears splits "2010-2014" into its bounds; a single year is both.
func parseYears(text string) (start, end string) {
	text = strings.TrimSpace(text)
	if before, after, ok := strings.Cut(text, "-"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return text, text
}
