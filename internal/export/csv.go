// Package export serializes result lists to the downloadable CSV file.
package export

import (
	"bytes"
	"io"
	"strings"

	"github.com/JonMunkholm/ResumeMatch/internal/match"
)

const (
	// Filename is the name offered for the downloaded file.
	Filename = "resume_results.csv"

	// ContentType is the MIME type sent with the download.
	ContentType = "text/csv; charset=utf-8"
)

// Header is the first line of every export.
var Header = []string{"Similarity", "Name", "Email", "Skills", "Education", "Experience", "Resume File"}

// CSV renders results as CSV text: header first, one line per result in
// input order, lines joined by "\n" with no trailing newline.
func CSV(results []match.MatchResult) []byte {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, results)
	return buf.Bytes()
}

// WriteCSV streams the CSV text to w.
//
// Similarity is written bare; every other field is always double-quoted with
// embedded quotes doubled. encoding/csv only quotes fields that need it, so
// lines are assembled here instead.
func WriteCSV(w io.Writer, results []match.MatchResult) error {
	if _, err := io.WriteString(w, strings.Join(Header, ",")); err != nil {
		return err
	}

	for _, r := range results {
		fields := []string{
			match.FormatSimilarity(r.Similarity),
			quote(r.Name),
			quote(r.Email),
			quote(r.Skills.String()),
			quote(r.Education),
			quote(r.Experience),
			quote(r.ResumeFileName),
		}
		if _, err := io.WriteString(w, "\n"+strings.Join(fields, ",")); err != nil {
			return err
		}
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
