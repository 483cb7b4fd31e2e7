package audit

import (
	"bytes"
	"encoding/csv"
	"time"
)

// Exporter menulis audit timeline ke CSV.
type Exporter struct {
	location *time.Location
}

// NewExporter membuat exporter; loc nil berarti UTC.
func NewExporter(loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{location: loc}
}

// WriteCSV menghasilkan CSV dengan header tetap.
func (e *Exporter) WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "category", "actor", "action", "entity", "entity_id", "details", "reason"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.At.In(e.location).Format(time.RFC3339),
			string(row.Category),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			row.Details,
			row.Reason,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
