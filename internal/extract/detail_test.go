package extract

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/tenderscan/internal/model"
)

// mustParse parses inline markup for a test.
func mustParse(t *testing.T, markup string) *goquery.Document {
	t.Helper()

	doc, err := Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("failed to parse markup: %v", err)
	}
	return doc
}

// mustParseFile parses a file from testdata.
func mustParseFile(t *testing.T, name string) *goquery.Document {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	doc, err := ParseBytes(data)
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return doc
}

// detailPage wraps columns in the detail page skeleton.
func detailPage(title string, columns ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if title != "" {
		b.WriteString(`<div class="tender-header__title"><h1>` + title + `</h1></div>`)
	}
	for _, c := range columns {
		b.WriteString(c)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// fieldColumn builds a column of labeled blocks from label/value pairs.
func fieldColumn(pairs ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="tender-body__col">`)
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(`<div class="tender-body__block"><div class="tender-body__label">` + pairs[i] +
			`</div><div class="tender-body__field">` + pairs[i+1] + `</div></div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// TestDetailExtractorFixture tests extraction of a complete detail page.
func TestDetailExtractorFixture(t *testing.T) {
	t.Parallel()

	detail, problems := NewDetailExtractor().Extract(mustParseFile(t, "detail.html"))

	if len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}

	want := model.Detail{
		Name:                   "Ремонт автомобильной дороги",
		Price:                  model.StringPtr("1 000 000"),
		EndDate:                model.StringPtr("25.03.2025 10:00"),
		SecuringTheApplication: model.StringPtr("50 000 ₽"),
		Branches: []model.Branch{
			{Link: "/a", Name: "Construction"},
			{Link: "/b", Name: "Logistics"},
		},
	}
	if !reflect.DeepEqual(detail, want) {
		t.Errorf("detail mismatch\n got: %+v\nwant: %+v", detail, want)
	}
}

// TestDetailExtractorTitle tests the title prefix rule.
func TestDetailExtractorTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "prefix is stripped", title: "Тендер: Road repair", want: "Road repair"},
		{name: "surrounding whitespace is ignored", title: "\n   Тендер: Road repair  \n", want: "Road repair"},
		{name: "missing prefix yields empty name", title: "Road repair", want: ""},
		{name: "missing title block yields empty name", title: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			detail, _ := NewDetailExtractor().Extract(mustParse(t, detailPage(tt.title)))
			if detail.Name != tt.want {
				t.Errorf("name = %q, want %q", detail.Name, tt.want)
			}
		})
	}
}

// TestDetailExtractorFields tests labeled field handling.
func TestDetailExtractorFields(t *testing.T) {
	t.Parallel()

	t.Run("price dash and surrounding whitespace are removed", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x", fieldColumn("Начальная цена", "1 000 000 - ")))
		detail, _ := NewDetailExtractor().Extract(doc)
		if got := model.Value(detail.Price); got != "1 000 000" {
			t.Errorf("price = %q, want %q", got, "1 000 000")
		}
	})

	t.Run("end date non-breaking space becomes a space", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x", fieldColumn("Окончание (МСК)", "25.03.2025&nbsp;10:00")))
		detail, _ := NewDetailExtractor().Extract(doc)
		got := model.Value(detail.EndDate)
		if got != "25.03.2025 10:00" {
			t.Errorf("end_date = %q", got)
		}
		if strings.ContainsRune(got, '\u00a0') {
			t.Error("end_date still contains a non-breaking space")
		}
	})

	t.Run("missing security block leaves the field absent", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x",
			fieldColumn("Начальная цена", "100", "Окончание (МСК)", "01.01.2025 09:00"),
		))
		detail, problems := NewDetailExtractor().Extract(doc)

		if detail.SecuringTheApplication != nil {
			t.Errorf("expected securing_the_application to be absent, got %q", *detail.SecuringTheApplication)
		}
		if detail.HasField("securing_the_application") {
			t.Error("HasField reports the absent field as present")
		}
		if model.Value(detail.Price) != "100" || model.Value(detail.EndDate) != "01.01.2025 09:00" {
			t.Errorf("other fields affected: %+v", detail)
		}
		if len(problems) != 0 {
			t.Errorf("absence is not a problem, got %v", problems)
		}
	})

	t.Run("value falls back to nested span", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x", fieldColumn("Обеспечение заявки", "  <span>5 000 ₽</span>")))
		detail, _ := NewDetailExtractor().Extract(doc)
		if got := model.Value(detail.SecuringTheApplication); got != "5 000 ₽" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unknown labels are ignored", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x", fieldColumn("Заказчик", "ООО Ромашка", "Регион", "Москва")))
		detail, problems := NewDetailExtractor().Extract(doc)
		if !reflect.DeepEqual(detail, model.Detail{Name: "x"}) {
			t.Errorf("expected only the name, got %+v", detail)
		}
		if len(problems) != 0 {
			t.Errorf("unexpected problems %v", problems)
		}
	})

	t.Run("block without value element is reported and skipped", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x",
			`<div class="tender-body__col">
				<div class="tender-body__block"><div class="tender-body__label">Начальная цена</div></div>
				<div class="tender-body__block"><div class="tender-body__label">Окончание (МСК)</div>
					<div class="tender-body__field">02.02.2025 12:00</div></div>
			</div>`,
		))
		detail, problems := NewDetailExtractor().Extract(doc)

		if detail.Price != nil {
			t.Error("expected price to be absent")
		}
		if model.Value(detail.EndDate) != "02.02.2025 12:00" {
			t.Errorf("end_date lost: %+v", detail)
		}
		if len(problems) != 1 {
			t.Fatalf("expected 1 problem, got %d", len(problems))
		}
		if problems[0].Tag != TagPrice {
			t.Errorf("problem tag = %v, want price", problems[0].Tag)
		}
		if !strings.Contains(problems[0].Error(), "price") {
			t.Errorf("error text should name the field: %q", problems[0].Error())
		}
	})

	t.Run("repeated label keeps the last value", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x", fieldColumn("Начальная цена", "1", "Начальная цена", "2")))
		detail, _ := NewDetailExtractor().Extract(doc)
		if got := model.Value(detail.Price); got != "2" {
			t.Errorf("price = %q, want last value", got)
		}
	})
}

// TestDetailExtractorBranches tests the industries column.
func TestDetailExtractorBranches(t *testing.T) {
	t.Parallel()

	t.Run("anchors keep markup order", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x",
			`<div class="tender-body__col tender-body__col--full last"><div class="tender-body__block">
				<ul><li><a href="/a" title="Construction">c</a></li><li><a href="/b" title="Logistics">l</a></li></ul>
			</div></div>`,
		))
		detail, _ := NewDetailExtractor().Extract(doc)

		want := []model.Branch{{Link: "/a", Name: "Construction"}, {Link: "/b", Name: "Logistics"}}
		if !reflect.DeepEqual(detail.Branches, want) {
			t.Errorf("branches = %+v, want %+v", detail.Branches, want)
		}
	})

	t.Run("lists from several blocks are appended", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x",
			`<div class="tender-body__col tender-body__col--full last">
				<div class="tender-body__block"><ul><li><a href="/a" title="A">a</a></li></ul></div>
				<div class="tender-body__block"><p>no list here</p></div>
				<div class="tender-body__block"><ul><li><a href="/b" title="B">b</a></li></ul></div>
			</div>`,
		))
		detail, _ := NewDetailExtractor().Extract(doc)

		if len(detail.Branches) != 2 || detail.Branches[0].Name != "A" || detail.Branches[1].Name != "B" {
			t.Errorf("unexpected branches %+v", detail.Branches)
		}
	})

	t.Run("full-width column not in last position is a field column", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x",
			`<div class="tender-body__col tender-body__col--full"><div class="tender-body__block">
				<div class="tender-body__label">Начальная цена</div><div class="tender-body__field">10</div>
				<ul><li><a href="/a" title="A">a</a></li></ul>
			</div></div>`,
		))
		detail, _ := NewDetailExtractor().Extract(doc)

		if detail.Branches != nil {
			t.Errorf("expected no branches, got %+v", detail.Branches)
		}
		if model.Value(detail.Price) != "10" {
			t.Errorf("expected price from field column, got %+v", detail)
		}
	})

	t.Run("no industries column leaves branches absent", func(t *testing.T) {
		t.Parallel()

		detail, _ := NewDetailExtractor().Extract(mustParse(t, detailPage("Тендер: x", fieldColumn("Начальная цена", "1"))))
		if detail.Branches != nil {
			t.Errorf("expected nil branches, got %+v", detail.Branches)
		}
	})

	t.Run("anchor without href is reported", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, detailPage("Тендер: x",
			`<div class="tender-body__col tender-body__col--full last"><div class="tender-body__block">
				<ul><li><a title="Broken">broken</a></li><li><a href="/ok" title="OK">ok</a></li></ul>
			</div></div>`,
		))
		detail, problems := NewDetailExtractor().Extract(doc)

		if len(detail.Branches) != 1 || detail.Branches[0].Link != "/ok" {
			t.Errorf("unexpected branches %+v", detail.Branches)
		}
		if len(problems) != 1 || problems[0].Tag != TagBranches {
			t.Errorf("expected one branches problem, got %v", problems)
		}
	})
}
