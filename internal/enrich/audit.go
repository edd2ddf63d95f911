package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"finclusion/pkg/contracts/domain"
)

// AuditAction names what the enricher did with a record.
type AuditAction string

const (
	ActionAdded     AuditAction = "added"
	ActionDiscarded AuditAction = "discarded"
)

// AuditEntry documents one enrichment decision. Fingerprints allow an
// auditor to verify a logged record against an exported dataset.
type AuditEntry struct {
	Action        AuditAction `json:"action"`
	RecordID      string      `json:"record_id"`
	IndicatorCode string      `json:"indicator_code,omitempty"`
	Year          int         `json:"year,omitempty"`
	Value         float64     `json:"value,omitempty"`
	SourceName    string      `json:"source_name,omitempty"`
	KeptRecordID  string      `json:"kept_record_id,omitempty"`
	KeptSource    string      `json:"kept_source,omitempty"`
	Fingerprint   string      `json:"fingerprint"`
	Note          string      `json:"note,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// AuditLog collects enrichment decisions in order.
type AuditLog struct {
	Entries []AuditEntry `json:"entries"`
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// RecordAdded logs a record appended to the enriched dataset.
func (a *AuditLog) RecordAdded(rec domain.Record, note string) {
	a.Entries = append(a.Entries, AuditEntry{
		Action:        ActionAdded,
		RecordID:      rec.ID,
		IndicatorCode: rec.IndicatorCode,
		Year:          rec.Year(),
		Value:         rec.Value,
		SourceName:    rec.SourceName,
		Fingerprint:   Fingerprint(rec),
		Note:          note,
		Timestamp:     time.Now().UTC(),
	})
}

// RecordDiscarded logs a record dropped in favor of another, keeping
// the discarded value's provenance for auditability.
func (a *AuditLog) RecordDiscarded(discarded, kept domain.Record, note string) {
	a.Entries = append(a.Entries, AuditEntry{
		Action:        ActionDiscarded,
		RecordID:      discarded.ID,
		IndicatorCode: discarded.IndicatorCode,
		Year:          discarded.Year(),
		Value:         discarded.Value,
		SourceName:    discarded.SourceName,
		KeptRecordID:  kept.ID,
		KeptSource:    kept.SourceName,
		Fingerprint:   Fingerprint(discarded),
		Note:          note,
		Timestamp:     time.Now().UTC(),
	})
}

// Merge appends another log's entries.
func (a *AuditLog) Merge(other *AuditLog) {
	if other == nil {
		return
	}
	a.Entries = append(a.Entries, other.Entries...)
}

// Markdown renders the log in the documentation format the analysis
// team circulates alongside enriched datasets.
func (a *AuditLog) Markdown() string {
	var b strings.Builder
	b.WriteString("# Data Enrichment Log\n")
	fmt.Fprintf(&b, "Date: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	for _, e := range a.Entries {
		fmt.Fprintf(&b, "## %s %s\n", strings.ToUpper(string(e.Action)[:1])+string(e.Action)[1:], e.RecordID)
		if e.IndicatorCode != "" {
			fmt.Fprintf(&b, "- **indicator**: %s\n", e.IndicatorCode)
		}
		if e.Year != 0 {
			fmt.Fprintf(&b, "- **year**: %d\n", e.Year)
		}
		fmt.Fprintf(&b, "- **value**: %.2f\n", e.Value)
		if e.SourceName != "" {
			fmt.Fprintf(&b, "- **source**: %s\n", e.SourceName)
		}
		if e.KeptRecordID != "" {
			fmt.Fprintf(&b, "- **kept**: %s (%s)\n", e.KeptRecordID, e.KeptSource)
		}
		fmt.Fprintf(&b, "- **fingerprint**: %s\n", e.Fingerprint)
		if e.Note != "" {
			fmt.Fprintf(&b, "- **notes**: %s\n", e.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Fingerprint computes a short BLAKE2b digest of a record's canonical
// JSON form.
func Fingerprint(rec domain.Record) string {
	data, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}
