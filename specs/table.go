package specs

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	specTable = cascadia.MustCompile("table.moreinfotable")
	cellMatch = cascadia.MustCompile("td")
)

// ParseTable extracts label/value pairs from every specification table on
// an info page. Rows with fewer than two cells are skipped. A page without
// a specification table yields no rows and no error.
func ParseTable(rawHTML string) ([]Row, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, table := range cascadia.QueryAll(doc, specTable) {
		goquery.NewDocumentFromNode(table).Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.FindMatcher(cellMatch)
			if cells.Length() < 2 {
				return
			}
			label := cellText(cells.Eq(0))
			if label == "" {
				return
			}
			rows = append(rows, Row{Label: label, Value: cellText(cells.Eq(1))})
		})
	}
	return rows, nil
}

// HasTable reports whether rawHTML contains a specification table at all.
func HasTable(rawHTML string) bool {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return false
	}
	return cascadia.Query(doc, specTable) != nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
