package specs

import "testing"

const infoPage = `<html><body>
<div class="header"><table><tr><td>Not</td><td>Specs</td></tr></table></div>
<table class="moreinfotable">
  <tr><th colspan="2">Specifications</th></tr>
  <tr><td>Brake Rotor Diameter (IN)</td><td> 11.65 </td></tr>
  <tr><td>Thickness</td><td>25
      mm</td></tr>
  <tr><td>Only one cell</td></tr>
  <tr><td>Material</td><td><b>Cast</b> Iron</td></tr>
</table>
</body></html>`

func TestParseTable(t *testing.T) {
	rows, err := ParseTable(infoPage)
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}

	want := []Row{
		{"Brake Rotor Diameter (IN)", "11.65"},
		{"Thickness", "25 mm"},
		{"Material", "Cast Iron"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(rows), len(want), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestParseTable_NoTable(t *testing.T) {
	rows, err := ParseTable(`<html><body><p>nothing here</p></body></html>`)
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
	if HasTable(`<p>nothing</p>`) {
		t.Error("HasTable should be false without a specification table")
	}
	if !HasTable(infoPage) {
		t.Error("HasTable should be true for the info page")
	}
}
