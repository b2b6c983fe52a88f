package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobmate/internship-service/internal/model"
)

// ErrParse is matched by every extraction failure. It is never fatal: the
// worker logs it and the tick yields no records.
var ErrParse = errors.New("parse failed")

var (
	ErrNoContainer = fmt.Errorf("%w: content container not found", ErrParse)
	ErrNoTable     = fmt.Errorf("%w: no table found in content container", ErrParse)
)

// DefaultContainerSelector matches the rendered README of a GitHub repo.
const DefaultContainerSelector = "article.markdown-body"

// Table is the listings table as scraped: column names from the first row
// and the remaining rows as ordered, trimmed cell values. Rows are
// deduplicated and keep their table order.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column (case-insensitive), or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(h, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// Extractor turns listing-page HTML into a Table.
type Extractor struct {
	container   string
	lockMarkers []string
	log         *slog.Logger
}

// NewExtractor returns an Extractor that reads the first table inside the
// first element matching containerSelector and drops rows carrying any of
// lockMarkers.
func NewExtractor(containerSelector string, lockMarkers []string) *Extractor {
	if containerSelector == "" {
		containerSelector = DefaultContainerSelector
	}
	return &Extractor{
		container:   containerSelector,
		lockMarkers: lockMarkers,
		log:         slog.With("component", "extractor"),
	}
}

// Extract parses html and returns the deduplicated listings table.
func (e *Extractor) Extract(html string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	content := doc.Find(e.container).First()
	if content.Length() == 0 {
		return Table{}, ErrNoContainer
	}

	table := content.Find("table").First()
	if table.Length() == 0 {
		return Table{}, ErrNoTable
	}

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return Table{}, nil
	}

	var out Table
	rows.First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		out.Header = append(out.Header, strings.TrimSpace(cell.Text()))
	})

	seen := make(map[string]struct{})
	var locked, dupes int

	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		cells, ok := e.row(tr)
		if !ok {
			if tr.Find("td").Length() > 0 {
				locked++
			}
			return
		}

		key := model.RowKey(cells)
		if _, dup := seen[key]; dup {
			dupes++
			return
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, cells)
	})

	e.log.Debug("table extracted",
		"columns", len(out.Header), "rows", len(out.Rows), "locked", locked, "duplicates", dupes)
	return out, nil
}

// row extracts the cell values of one table row. ok is false for rows
// without data cells and for rows holding a lock marker.
func (e *Extractor) row(tr *goquery.Selection) (cells []string, ok bool) {
	tds := tr.Find("td")
	if tds.Length() == 0 {
		return nil, false
	}

	ok = true
	tds.EachWithBreak(func(i int, td *goquery.Selection) bool {
		if ContainsMarker(td.Text(), e.lockMarkers) {
			ok = false
			return false
		}
		cells = append(cells, cellValue(i, td))
		return true
	})
	if !ok {
		return nil, false
	}
	return cells, true
}

// cellValue prefers a link's text in the first column (the company name)
// and a link's target everywhere else (application links).
func cellValue(col int, td *goquery.Selection) string {
	link := td.Find("a").First()
	if href, has := link.Attr("href"); has {
		text := strings.TrimSpace(link.Text())
		if col == 0 && text != "" {
			return text
		}
		return href
	}
	return cellText(td)
}

// cellText returns the trimmed text of a cell, with <br>-separated parts
// joined by ", " so multi-line locations stay readable.
func cellText(td *goquery.Selection) string {
	if td.Find("br").Length() == 0 {
		return strings.TrimSpace(td.Text())
	}

	html, err := td.Html()
	if err != nil {
		return strings.TrimSpace(td.Text())
	}
	var parts []string
	for _, fragment := range splitBreaks(html) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(doc.Text()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", ")
}

func splitBreaks(html string) []string {
	replacer := strings.NewReplacer("<br/>", "\x00", "<br />", "\x00", "<br>", "\x00")
	return strings.Split(replacer.Replace(html), "\x00")
}
