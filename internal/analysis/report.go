package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Markdown renders a compact, sectioned summary of the run.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("[PIPELINE SUMMARY]\n")
	b.WriteString(fmt.Sprintf("Pipeline: %s\n", r.Title))
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Source))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Groups: %d\n", len(r.Aggregates)))
	b.WriteString(fmt.Sprintf("Run: %s\n\n", r.ID))

	b.WriteString("[ORDERING]\n")
	for i, l := range r.Order {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, safeVal(safeName(l))))
	}
	if len(r.Order) == 0 {
		b.WriteString("(empty)\n")
	}

	b.WriteString("\n[GROUP MEANS]\n")
	b.WriteString(fmt.Sprintf("| %s | condition | n | mean | sd | sem | lower | upper |\n", strings.ToLower(r.XLabel)))
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, a := range r.Aggregates {
		b.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %s | %s | %s |\n",
			safeVal(safeName(a.Order)), safeVal(safeName(a.Condition)), a.Count,
			num(a.Mean), num(a.SD), num(a.SEM), num(a.Lower), num(a.Upper)))
	}

	if len(r.Subjects) > 0 {
		b.WriteString("\n[SUBJECTS]\n")
		for _, s := range r.Subjects {
			b.WriteString(fmt.Sprintf("- %s (%s): ", safeVal(safeName(s.ID)), safeVal(safeName(s.Condition))))
			if len(s.Points) == 0 {
				b.WriteString("no valid values\n")
				continue
			}
			for i, p := range s.Points {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s=%.4g", safeVal(p.Order), p.Value))
			}
			b.WriteString("\n")
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func num(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", x)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
