package catalog

import (
	"fmt"
	"net/url"

	"github.com/use-agent/partfit/session"
)

// Selectors for the catalog's markup, kept in one place so a site change
// is a one-file fix.
const (
	selResultsContainer = ".listings-container"
	selListing          = `//*[contains(@class, "listing-border-top-line listing-inner-content")]`
	selPartNumber       = ".listing-final-partnumber"
	selManufacturer     = ".listing-final-manufacturer"
	selCategoryText     = ".listing-text-row"
	selMoreInfo         = ".ra-btn-moreinfo"
	selPartLink         = `.//*[contains(@id, "vew_partnumber")]`

	selPopupTable = `//*[@id="buyersguidepopup-outer_b"]/div/div/table`
	selPopupRows  = selPopupTable + `/tbody/tr`
	selDialogX    = ".dialog-close"

	selSearchInput = `//input[@id="topsearchinput[input]"]`
	selSuggestions = `//*[@id="autosuggestions[topsearchinput]"]/tbody/tr`
	selBreadcrumb  = "div[id^='breadcrumb_location_banner_inner'] span.belem.active"
	selFilterInput = ".filter-input"
	selFootnote    = ".listing-footnote-text"
)

// popupCell selects the n-th (1-based) cell of a compatibility popup row.
func popupCell(n int) string {
	return fmt.Sprintf("./td[%d]", n)
}

// topCategoryXPath matches the top-level category link by partial text.
func topCategoryXPath(name string) string {
	return "//a[contains(text(), " + session.XPathLiteral(name) + ")]"
}

// categoryXPath matches a category link by exact, whitespace-normalized text.
func categoryXPath(name string) string {
	return "//a[normalize-space(text()) = " + session.XPathLiteral(name) + "]"
}

// fitXPath matches a filtered listing cell whose manufacturer contains
// manufacturer.
func fitXPath(manufacturer string) string {
	return "//td[contains(@class, 'listing-inner-content')]" +
		"[.//span[contains(@class, 'listing-final-manufacturer') and contains(text(), " +
		session.XPathLiteral(manufacturer) + ")]]"
}

func searchURL(base, partID string) string {
	return base + "/en/partsearch/?partnum=" + url.QueryEscape(partID)
}

func catalogURL(base string) string {
	return base + "/en/catalog/"
}
