package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodAll is the sentinel for "all periods" in filters and summaries.
const PeriodAll = "TODOS"

// monthNames is the pt-BR label table used for "Month Year" period labels.
var monthNames = []string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// Period is a calendar-month bucket.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf buckets a date into its calendar month.
func PeriodOf(d Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// ParsePeriod accepts both the canonical "YYYY-MM" key and the localized
// "Month Year" label ("Março 2024"). Anything else fails with
// ErrInvalidDate.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, ErrInvalidDate
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return Period{Year: t.Year(), Month: t.Month()}, nil
	}
	parts := strings.Fields(s)
	if len(parts) == 2 {
		for i, name := range monthNames {
			if strings.EqualFold(parts[0], name) {
				year, err := strconv.Atoi(parts[1])
				if err != nil {
					return Period{}, ErrInvalidDate
				}
				return Period{Year: year, Month: time.Month(i + 1)}, nil
			}
		}
	}
	return Period{}, ErrInvalidDate
}

// Key renders the canonical "YYYY-MM" form.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label renders the localized "Month Year" form used on expense rows.
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", monthNames[int(p.Month)-1], p.Year)
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// Before orders periods chronologically.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}
