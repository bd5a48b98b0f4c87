package handler

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// optionalRef distinguishes an absent JSON field from an explicit null, so a
// partial update can clear a reference (null) or leave it untouched (absent).
type optionalRef struct {
	Set   bool
	Value *string
}

func (r *optionalRef) UnmarshalJSON(data []byte) error {
	r.Set = true
	if bytes.Equal(data, []byte("null")) {
		r.Value = nil
		return nil
	}
	return json.Unmarshal(data, &r.Value)
}

// currentUserID returns the authenticated caller's id set by the auth middleware
func currentUserID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

// applySearch adds a case-insensitive substring match over the given columns
func applySearch(q *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" {
		return q
	}
	pattern := "%" + strings.ToLower(term) + "%"
	conds := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		conds = append(conds, "LOWER("+col+") LIKE ?")
		args = append(args, pattern)
	}
	return q.Where(strings.Join(conds, " OR "), args...)
}

// applyOrdering orders by a whitelisted field from the `ordering` query param.
// A leading '-' selects descending order. Unknown fields fall back to the
// default ordering.
func applyOrdering(q *gorm.DB, param string, allowed map[string]string, fallback string) *gorm.DB {
	param = strings.TrimSpace(param)
	if param == "" {
		return q.Order(fallback)
	}
	desc := strings.HasPrefix(param, "-")
	field := strings.TrimPrefix(param, "-")
	col, ok := allowed[field]
	if !ok {
		return q.Order(fallback)
	}
	if desc {
		return q.Order(col + " DESC")
	}
	return q.Order(col + " ASC")
}

// parseDateParam parses an ISO YYYY-MM-DD value into a UTC midnight time
func parseDateParam(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}

// formatDate renders a time as ISO YYYY-MM-DD
func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
