// Package cli renders command output for the mitsukeru CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one tab-separated line per document.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

const timeLayout = "2006-01-02 15:04"

// ParseOutputFormat validates a --output flag value. Empty means text.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
}

// WriteResultPage writes one page of session results to w in the given format.
// Unknown formats are treated as text.
func WriteResultPage(w io.Writer, page *models.ResultPage, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, page)
	case OutputCompact:
		for _, doc := range page.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", doc.FileType, FormatTime(doc.LastModified), doc.Path)
		}
		return nil
	default:
		writeResultPageText(w, page)
		return nil
	}
}

func writeResultPageText(w io.Writer, page *models.ResultPage) {
	fmt.Fprintf(w, "\nPage %d: %d results (%d so far)\n\n", page.Page+1, len(page.Items), page.Total)
	for _, doc := range page.Items {
		writeOneResult(w, doc)
	}
	if page.Exhausted {
		fmt.Fprintln(w, "(no more results)")
	}
}

func writeOneResult(w io.Writer, doc *models.Document) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	name := doc.Name
	if doc.IsPinned {
		name = "* " + name
	}
	fmt.Fprintf(w, "%s\n", utils.Truncate(name, 80))
	fmt.Fprintf(w, "  %s\n", doc.Path)
	fmt.Fprintf(w, "  %s | %s | modified %s", strings.ToUpper(doc.FileType), utils.HumanBytes(doc.Size), FormatTime(doc.LastModified))
	if doc.LastOpened > 0 {
		fmt.Fprintf(w, " | opened %s", FormatTime(doc.LastOpened))
	}
	fmt.Fprintln(w)
}

// ParsedQuery is the result of running the date extractor and segmenter on a query.
type ParsedQuery struct {
	Query     string                `json:"query"`
	DateRange *models.DateRange     `json:"date_range"`
	Residual  string                `json:"residual"`
	Segments  models.SegmentedQuery `json:"segments"`
	Rendered  string                `json:"rendered"`
}

// WriteParsedQuery shows how a query was interpreted.
func WriteParsedQuery(w io.Writer, p *ParsedQuery, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, p)
	}
	fmt.Fprintf(w, "query:      %q\n", p.Query)
	if p.DateRange != nil {
		fmt.Fprintf(w, "date range: %s .. %s\n", FormatTime(p.DateRange.Start), FormatTime(p.DateRange.End))
	} else {
		fmt.Fprintln(w, "date range: none")
	}
	fmt.Fprintf(w, "residual:   %q\n", p.Residual)
	writeTerms(w, "quoted", p.Segments.Quoted)
	writeTerms(w, "negated", p.Segments.Negated)
	writeTerms(w, "prefix", p.Segments.Prefix)
	writeTerms(w, "punctuated", p.Segments.Punctuated)
	fmt.Fprintf(w, "rendered:   %s\n", p.Rendered)
	return nil
}

func writeTerms(w io.Writer, label string, terms []models.Term) {
	if len(terms) == 0 {
		return
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%q", t.Text)
	}
	fmt.Fprintf(w, "%-11s %s\n", label+":", strings.Join(parts, ", "))
}

// StatusReport is what the status command prints.
type StatusReport struct {
	Documents      int64            `json:"documents"`
	Indexed        uint64           `json:"indexed"`
	ByFileType     map[string]int64 `json:"by_file_type"`
	DiskUsageBytes int64            `json:"disk_usage_bytes"`
	DatabasePath   string           `json:"database_path"`
	BleveIndexPath string           `json:"bleve_index_path"`
}

// WriteStatus writes an index summary.
func WriteStatus(w io.Writer, s *StatusReport, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Documents:   %d (%d in keyword index)\n", s.Documents, s.Indexed)
	fmt.Fprintf(w, "Disk usage:  %s\n", utils.HumanBytes(s.DiskUsageBytes))
	fmt.Fprintf(w, "Database:    %s\n", s.DatabasePath)
	fmt.Fprintf(w, "Index:       %s\n", s.BleveIndexPath)
	if len(s.ByFileType) > 0 {
		fmt.Fprintln(w, "By type:")
		for _, ft := range sortedKeys(s.ByFileType) {
			fmt.Fprintf(w, "  %-8s %d\n", ft, s.ByFileType[ft])
		}
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Largest groups first, ties by name.
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// FormatTime renders epoch seconds in the local zone, or "-" for zero.
func FormatTime(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).Format(timeLayout)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
