package main

import (
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/ResumeMatch/internal/match"
)

// writeTable writes results as an aligned plain-text table for terminals.
// The resume column shows the file name followed by its link.
func writeTable(w io.Writer, results []match.MatchResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := io.WriteString(tw, strings.Join(match.Columns, "\t")+"\n"); err != nil {
		return err
	}

	for _, r := range results {
		resume := r.ResumeFileName
		if r.ResumeFileLink != "" {
			resume += " <" + r.ResumeFileLink + ">"
		}
		cells := []string{
			match.FormatSimilarity(r.Similarity),
			r.Name,
			r.Email,
			r.Skills.String(),
			r.Education,
			r.Experience,
			resume,
		}
		for i, c := range cells {
			cells[i] = flatten(c)
		}
		if _, err := io.WriteString(tw, strings.Join(cells, "\t")+"\n"); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// flatten keeps one result per line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
