// Package normalize converts raw tabular rows or extraction-service payloads
// into canonical StreamRecord values. It is purely functional: rows that fail
// validation are dropped, never errored, and nothing here does I/O.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/model"
)

// Column alias sets, matched case-insensitively against header names.
var (
	platformKeys = []string{"platform", "store", "service", "source", "dsp"}
	streamsKeys  = []string{"streams", "stream_count", "plays", "units", "quantity"}
	revenueKeys  = []string{"revenue", "earnings", "amount", "net_revenue", "royalty", "royalties"}
	dateKeys     = []string{"date", "period", "statement_date", "reporting_date"}
)

// Date layouts accepted when coercing to YYYY-MM-DD.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// FromRows normalizes tabular rows (header name -> cell value).
// Rows missing a parseable streams or revenue value are silently excluded.
func FromRows(rows []map[string]string) []model.StreamRecord {
	out := make([]model.StreamRecord, 0, len(rows))
	for _, row := range rows {
		streams, ok := parseStreams(lookup(row, streamsKeys))
		if !ok {
			continue
		}
		revenue, ok := parseRevenue(lookup(row, revenueKeys))
		if !ok {
			continue
		}
		date, ok := coerceDate(lookup(row, dateKeys))
		if !ok {
			continue
		}
		platform, _ := constants.CanonicalizePlatform(lookup(row, platformKeys))
		out = append(out, model.StreamRecord{
			Platform: platform,
			Streams:  streams,
			Revenue:  revenue,
			Date:     date,
		})
	}
	return out
}

// FromPayload normalizes loosely-typed objects returned by the extraction
// service. Values may arrive as JSON numbers or strings; the same
// disqualification rules apply as for tabular rows.
func FromPayload(items []map[string]any) []model.StreamRecord {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := make(map[string]string, len(item))
		for k, v := range item {
			row[k] = stringify(v)
		}
		rows = append(rows, row)
	}
	return FromRows(rows)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// lookup finds the first aliased column present in the row, case-insensitively.
func lookup(row map[string]string, aliases []string) string {
	for k, v := range row {
		key := strings.ToLower(strings.TrimSpace(k))
		for _, alias := range aliases {
			if key == alias {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// parseStreams accepts a non-negative integer, tolerating thousands separators.
func parseStreams(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), " ", "")
	// "1000.0" style values from JSON numbers are fine as long as integral
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// parseRevenue accepts a non-negative number, tolerating currency symbols and
// thousands separators. Precision is preserved; rounding is the caller's job.
func parseRevenue(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// coerceDate returns a YYYY-MM-DD date. Missing dates default to today;
// present but unparseable dates disqualify the row.
func coerceDate(s string) (string, bool) {
	if s == "" {
		return time.Now().UTC().Format("2006-01-02"), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
