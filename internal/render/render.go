// Package render formats reconciled extraction results as text. Every
// function here is pure: the same input always yields the same output
package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/chartcode/internal/model"
)

// NoData is returned for empty input
const NoData = "No data to display"

const (
	empty        = "-"
	notAvailable = "N/A"
)

var factColumns = []string{
	"Case", "Document Title", "Fact", "Type", "Suggested Code", "Confidence", "Validated Code", "RxNorm",
}

// Render formats results in the requested format. An unspecified format
// renders a list for one document and a table otherwise
func Render(results []model.ExtractionResult, format model.Format) string {
	if len(results) == 0 {
		return NoData
	}
	switch format {
	case model.FormatTable:
		return Table(results)
	case model.FormatCSV:
		return CSV(results)
	case model.FormatList:
		return List(results)
	default:
		if len(results) == 1 {
			return List(results)
		}
		return Table(results)
	}
}

// factRows lays out one row per (document, fact). Case and title appear
// only on the first row of each document
func factRows(results []model.ExtractionResult) [][]string {
	var rows [][]string
	for i, r := range results {
		caseNo := strconv.Itoa(i + 1)
		title := orEmpty(r.DocumentTitle)

		if len(r.Facts) == 0 {
			rows = append(rows, []string{caseNo, title, empty, empty, empty, empty, empty, empty})
			continue
		}

		for j, f := range r.Facts {
			row := []string{"", ""}
			if j == 0 {
				row = []string{caseNo, title}
			}
			validated := notAvailable
			if f.ValidatedCode != nil {
				validated = *f.ValidatedCode
			}
			rxnorm := empty
			if f.Kind == model.FactKindMedication && f.ValidatedCode != nil {
				rxnorm = *f.ValidatedCode
			}
			row = append(row,
				orEmpty(f.Name),
				orEmpty(string(f.Kind)),
				orEmpty(model.Deref(f.SuggestedCode)),
				orEmpty(string(f.Confidence)),
				validated,
				rxnorm,
			)
			rows = append(rows, row)
		}
	}
	return rows
}

// Table renders a markdown table
func Table(results []model.ExtractionResult) string {
	if len(results) == 0 {
		return NoData
	}
	return markdownTable(factColumns, factRows(results))
}

// CSV renders the table columns as CSV with a header row
func CSV(results []model.ExtractionResult) string {
	if len(results) == 0 {
		return NoData
	}
	return csvTable(factColumns, factRows(results))
}

// notFound stands in for the validated code when the lookup found no match
const notFound = "Not found in database"

// List renders facts grouped by document, split by code source
func List(results []model.ExtractionResult) string {
	if len(results) == 0 {
		return NoData
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n", titleOf(r.DocumentID, r.DocumentTitle))

		if len(r.Facts) == 0 {
			b.WriteString("\nNo facts extracted.\n")
			continue
		}

		var inferred, validated, uncoded []string
		for _, f := range r.Facts {
			if f.SuggestedCode != nil {
				inferred = append(inferred, factLine(f, *f.SuggestedCode, true))
			}
			switch {
			case f.ValidatedCode != nil:
				validated = append(validated, factLine(f, *f.ValidatedCode, true))
			case f.SuggestedCode != nil:
				validated = append(validated, factLine(f, notFound, true))
			}
			if f.SuggestedCode == nil && f.ValidatedCode == nil {
				uncoded = append(uncoded, factLine(f, "", true))
			}
		}

		writeSection(&b, "AI-inferred", inferred)
		writeSection(&b, "API-validated", validated)
		writeSection(&b, "Uncoded", uncoded)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n", heading)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
}

func factLine(f model.ClinicalFact, code string, withReasoning bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- **%s** (%s)", f.Name, f.Kind)
	if code != "" {
		fmt.Fprintf(&b, ": %s", code)
	}
	if f.Kind == model.FactKindMedication {
		if details := joinNonEmpty(f.Dosage, f.Frequency, f.Route); details != "" {
			fmt.Fprintf(&b, " [%s]", details)
		}
	}
	fmt.Fprintf(&b, ", confidence %s", f.Confidence)
	if withReasoning && f.Reasoning != "" {
		fmt.Fprintf(&b, ". %s", strings.TrimSuffix(f.Reasoning, "."))
	}
	return b.String()
}

// Failures renders a notice per failed document
func Failures(failures []model.ExtractionFailure) string {
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range failures {
		fmt.Fprintf(&b, "> Could not process %s: %s\n", titleOf(f.DocumentID, f.DocumentTitle), f.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

var vitalColumns = []string{
	"Case", "Document Title", "Blood Pressure", "Heart Rate", "Temperature", "Respiratory Rate", "SpO2",
}

// Vitals renders the vital signs of each document
func Vitals(results []model.ExtractionResult, format model.Format) string {
	if len(results) == 0 {
		return NoData
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		v := r.Vitals
		rows[i] = []string{
			strconv.Itoa(i + 1),
			orEmpty(r.DocumentTitle),
			orEmpty(v.BloodPressure),
			orEmpty(v.HeartRate),
			orEmpty(v.Temperature),
			orEmpty(v.RespiratoryRate),
			orEmpty(v.OxygenSaturation),
		}
	}

	switch format {
	case model.FormatCSV:
		return csvTable(vitalColumns, rows)
	case model.FormatTable:
		return markdownTable(vitalColumns, rows)
	}
	if format == model.FormatUnspecified && len(results) > 1 {
		return markdownTable(vitalColumns, rows)
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n\n", titleOf(r.DocumentID, r.DocumentTitle))
		if r.Vitals.IsEmpty() {
			b.WriteString("No vital signs recorded.\n")
			continue
		}
		for j, label := range vitalColumns[2:] {
			fmt.Fprintf(&b, "- %s: %s\n", label, rows[i][j+2])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary is one document's generated summary
type Summary struct {
	DocumentID int
	Title      string
	Text       string
}

// Summaries renders summaries under their document titles
func Summaries(items []Summary) string {
	if len(items) == 0 {
		return NoData
	}
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = fmt.Sprintf("## %s\n\n%s", titleOf(s.DocumentID, s.Title), strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, "\n\n")
}

func markdownTable(columns []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	sep := make([]string, len(columns))
	for i, c := range columns {
		sep[i] = strings.Repeat("-", len(c)+2)
	}
	b.WriteString("|" + strings.Join(sep, "|") + "|\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeCell(c)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func csvTable(columns []string, rows [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(columns)
	_ = w.WriteAll(rows) // writes to a bytes.Buffer cannot fail
	return strings.TrimRight(buf.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	return s
}

func titleOf(id int, title string) string {
	if title == "" {
		return fmt.Sprintf("Document %d", id)
	}
	return title
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
