package templates

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// writeAll writes parts in order and stops at the first error.
func writeAll(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

// attr renders a leading-space name="value" pair with the value escaped.
func attr(name, val string) string {
	return " " + name + `="` + templ.EscapeString(val) + `"`
}

// href renders a sanitized link attribute.
func href(u string) string {
	return attr("href", string(templ.URL(u)))
}

func formatStat(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", x)
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func formatDateTime(t time.Time) string {
	return t.Format("Jan 2, 15:04")
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unnamed)"
	}
	return s
}
