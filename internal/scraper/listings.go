package scraper

import (
	"log/slog"

	"jobmate/internship-service/internal/model"
)

// continuationMarker in the company column means "same company as the row
// above".
const continuationMarker = "↳"

// Columns names the table headers mapped onto Listing fields.
type Columns struct {
	Company  string
	Role     string
	Location string
	Link     string
	Date     string
}

// DefaultColumns matches the headers of the SimplifyJobs internship tables.
func DefaultColumns() Columns {
	return Columns{
		Company:  "Company",
		Role:     "Role",
		Location: "Location",
		Link:     "Application/Link",
		Date:     "Date Posted",
	}
}

// NormalizeAndSort maps table rows onto listings, parses their dates and
// sorts them ascending by date with undated listings last.
//
// If the table has no date column the listings are returned in table order
// with every date unset.
func NormalizeAndSort(t Table, cols Columns, dates *DateNormalizer) []model.Listing {
	var (
		company  = t.Column(cols.Company)
		role     = t.Column(cols.Role)
		location = t.Column(cols.Location)
		link     = t.Column(cols.Link)
		date     = t.Column(cols.Date)
	)

	listings := make([]model.Listing, 0, len(t.Rows))
	prevCompany := ""
	for _, row := range t.Rows {
		l := model.Listing{
			Company:         cell(row, company),
			Role:            cell(row, role),
			Location:        cell(row, location),
			ApplicationLink: cell(row, link),
			RawDate:         cell(row, date),
			RawRow:          row,
		}
		if l.Company == continuationMarker && prevCompany != "" {
			l.Company = prevCompany
		}
		prevCompany = l.Company

		if date >= 0 {
			l.DatePosted = dates.Parse(l.RawDate)
		}
		listings = append(listings, l)
	}

	if date < 0 {
		slog.Warn("date column not found, listings left unsorted", "column", cols.Date)
		return listings
	}

	SortByDate(listings)
	return listings
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
