// Package templates renders the upload page and the result table as
// templ components. Every server- or user-supplied string is escaped with
// templ.EscapeString and every link target passes through templ.URL.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/ResumeMatch/internal/match"
)

// ResultsRegionID is the element ID of the container replaced on each
// successful submission.
const ResultsRegionID = "results"

// ExportPath receives the Download CSV form.
const ExportPath = "/export"

// ExportField is the form field carrying the displayed results as JSON.
// The export is built from this list alone, so it keeps working after the
// server forgets the set.
const ExportField = "results"

// ResultsRegion renders the whole results container. A nil or empty set
// renders the empty container.
func ResultsRegion(set *match.ResultSet) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div id="` + ResultsRegionID + `" class="results" aria-live="polite">`)
		if set != nil {
			if err := ResultsTable(set).Render(ctx, &b); err != nil {
				return err
			}
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ResultsTable renders the result table followed by the Download CSV control,
// a form posting the displayed results to ExportPath.
// Rows follow input order and columns follow match.Columns.
func ResultsTable(set *match.ResultSet) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<table class="table table-striped"><thead><tr>`)
		for _, col := range match.Columns {
			b.WriteString(`<th scope="col">`)
			b.WriteString(templ.EscapeString(col))
			b.WriteString(`</th>`)
		}
		b.WriteString(`</tr></thead><tbody>`)

		for _, r := range set.Results {
			b.WriteString(`<tr>`)
			writeCell(&b, match.FormatSimilarity(r.Similarity))
			writeCell(&b, r.Name)
			writeCell(&b, r.Email)
			writeCell(&b, r.Skills.String())
			writeCell(&b, r.Education)
			writeCell(&b, r.Experience)
			b.WriteString(`<td>`)
			writeResumeLink(&b, r.ResumeFileLink, r.ResumeFileName)
			b.WriteString(`</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)

		payload, err := json.Marshal(set.Results)
		if err != nil {
			return fmt.Errorf("encode export payload: %w", err)
		}
		b.WriteString(`<form class="export-form" method="post" action="` + ExportPath + `">`)
		b.WriteString(`<input type="hidden" name="` + ExportField + `" value="`)
		b.WriteString(templ.EscapeString(string(payload)))
		b.WriteString(`"><button type="submit" class="btn btn-primary mt-3" id="downloadCsv">Download CSV</button></form>`)

		_, err = io.WriteString(w, b.String())
		return err
	})
}

func writeCell(b *strings.Builder, text string) {
	b.WriteString(`<td>`)
	b.WriteString(templ.EscapeString(text))
	b.WriteString(`</td>`)
}

// writeResumeLink opens the document in a new browsing context with no
// opener reference.
func writeResumeLink(b *strings.Builder, link, name string) {
	b.WriteString(`<a href="`)
	b.WriteString(templ.EscapeString(string(templ.URL(link))))
	b.WriteString(`" target="_blank" rel="noopener noreferrer">`)
	b.WriteString(templ.EscapeString(name))
	b.WriteString(`</a>`)
}
