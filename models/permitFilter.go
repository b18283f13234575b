package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// PermitFilter narrows the record set for listing, statistics and export.
// Empty fields impose no constraint. The SQL form (Apply) and the in-memory
// form (Match) must agree; the feed coordinator filters snapshots in memory
// while the list endpoints filter in the database. Equality filters
// (company/status/type) compare case-insensitively on both paths, matching
// the ci collation the permits table uses.
type PermitFilter struct {
	Search   string `form:"search" json:"search"`
	Company  string `form:"company" json:"company"`
	Status   string `form:"status" json:"status"`
	Type     string `form:"type" json:"type"`
	DateFrom string `form:"date_from" json:"date_from"`
	DateTo   string `form:"date_to" json:"date_to"`
}

func (f *PermitFilter) IsZero() bool {
	return f == nil || (f.Search == "" && f.Company == "" && f.Status == "" &&
		f.Type == "" && f.DateFrom == "" && f.DateTo == "")
}

// searchColumns are matched case-insensitively against the free-text term.
var searchColumns = []string{"number", "description", "company", "location", "owner", "project"}

// Apply adds the filter's constraints to a permits query.
func (f *PermitFilter) Apply(db *gorm.DB) *gorm.DB {
	if f == nil {
		return db
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		cond := db.Session(&gorm.Session{NewDB: true})
		for i, col := range searchColumns {
			if i == 0 {
				cond = cond.Where("LOWER("+col+") LIKE ?", like)
			} else {
				cond = cond.Or("LOWER("+col+") LIKE ?", like)
			}
		}
		db = db.Where(cond)
	}
	if f.Company != "" {
		db = db.Where("LOWER(company) = ?", strings.ToLower(f.Company))
	}
	if f.Status != "" {
		db = db.Where("LOWER(status) = ?", strings.ToLower(f.Status))
	}
	if f.Type != "" {
		db = db.Where("LOWER(type) = ?", strings.ToLower(f.Type))
	}

	// The date range only constrains rows whose day column holds a calendar
	// date. Shift and free-text rows pass through untouched.
	from, fromOk := parseFilterDate(f.DateFrom)
	to, toOk := parseFilterDate(f.DateTo)
	if fromOk || toOk {
		dated := db.Session(&gorm.Session{NewDB: true})
		dated = dated.Where("day REGEXP '^[0-9]{4}-[0-9]{2}-[0-9]{2}$'")
		if fromOk {
			dated = dated.Where("day >= ?", from.Format("2006-01-02"))
		}
		if toOk {
			dated = dated.Where("day <= ?", to.Format("2006-01-02"))
		}
		undated := db.Session(&gorm.Session{NewDB: true}).
			Where("NOT day REGEXP '^[0-9]{4}-[0-9]{2}-[0-9]{2}$'")
		db = db.Where(db.Session(&gorm.Session{NewDB: true}).Where(dated).Or(undated))
	}
	return db
}

// Match reports whether one record passes the filter. Kept in lockstep with
// Apply.
func (f *PermitFilter) Match(p *Permit) bool {
	if f == nil || p == nil {
		return p != nil
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		lower := strings.ToLower(term)
		hit := false
		for _, field := range []string{p.Number, p.Description, p.Company, p.Location, p.Owner, p.Project} {
			if strings.Contains(strings.ToLower(field), lower) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.Company != "" && !strings.EqualFold(p.Company, f.Company) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(p.Status, f.Status) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(p.Type, f.Type) {
		return false
	}

	from, fromOk := parseFilterDate(f.DateFrom)
	to, toOk := parseFilterDate(f.DateTo)
	if fromOk || toOk {
		day := p.DayValue()
		if day.IsDate() {
			if fromOk && day.Date.Before(from) {
				return false
			}
			if toOk && day.Date.After(to) {
				return false
			}
		}
	}
	return true
}

func parseFilterDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
