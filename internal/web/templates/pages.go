package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
	"github.com/a-h/templ"
)

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#fafafa;color:#222}
header{background:#fff;border-bottom:1px solid #ddd;padding:12px 24px}
nav a{margin-right:16px;text-decoration:none;color:#555;padding-bottom:4px}
nav a.active{color:#000;border-bottom:2px solid #d62728}
main{padding:24px;max-width:1000px}
.box{background:#fff;border:1px solid #ddd;border-radius:6px;padding:16px;margin-bottom:16px}
.error{border-color:#e0a0a0;background:#fff5f5;color:#8a1f1f}
.warn{color:#8a6d1f}
table{border-collapse:collapse;width:100%}
th,td{border-bottom:1px solid #eee;padding:4px 8px;text-align:right}
th:first-child,td:first-child,th:nth-child(2),td:nth-child(2){text-align:left}
.legend a{margin-right:12px;text-decoration:none;color:#222}
.legend a.off{opacity:.4;text-decoration:line-through}
.swatch{display:inline-block;width:12px;height:12px;margin-right:4px;vertical-align:middle}
img.chart{max-width:100%;border:1px solid #eee;background:#fff}
`

// Page renders the full dashboard for one pipeline tab.
func Page(v PageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout(v.Title, v.Tabs).Render(templ.WithChildren(ctx, pageBody(v)), w)
	})
}

// NotFound renders a minimal 404 body.
func NotFound(tabs []Tab, what string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			return writeAll(w, `<div class="box error">`, templ.EscapeString(what), " not found</div>\n")
		})
		return layout("Not found", tabs).Render(templ.WithChildren(ctx, body), w)
	})
}

// layout wraps the children in the document shell and tab navigation.
func layout(title string, tabs []Tab) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := writeAll(w,
			"<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>",
			templ.EscapeString(title),
			" · recoveryplot</title>\n<style>", styles, "</style>\n</head>\n<body>\n<header>",
		); err != nil {
			return err
		}
		if err := nav(tabs).Render(ctx, w); err != nil {
			return err
		}
		if err := writeAll(w, "</header>\n<main>\n"); err != nil {
			return err
		}
		if err := templ.GetChildren(ctx).Render(ctx, w); err != nil {
			return err
		}
		return writeAll(w, "</main>\n</body>\n</html>\n")
	})
}

func nav(tabs []Tab) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := writeAll(w, "<nav>"); err != nil {
			return err
		}
		for _, t := range tabs {
			class := ""
			if t.Active {
				class = attr("class", "active")
			}
			if err := writeAll(w, "<a", href("/"+t.Name), class, ">", templ.EscapeString(t.Title), "</a>"); err != nil {
				return err
			}
		}
		return writeAll(w, "</nav>")
	})
}

func pageBody(v PageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []templ.Component{
			heading(v.Title),
			uploadForm(v),
		}
		if v.Upload != nil {
			parts = append(parts, currentFile(v.Pipeline, v.Upload))
		}
		if v.Err != nil {
			parts = append(parts, errorBox(v))
		}
		if v.Result != nil {
			parts = append(parts,
				chartBox(v),
				valuesTable(v.Pipeline, v.Result, v.HideQuery),
				notes(v.Result.Warnings),
			)
		}
		if v.Upload == nil {
			parts = append(parts, templ.Raw(`<p class="box">Upload a CSV or XLSX file to see the chart.</p>`+"\n"))
		}
		for _, c := range parts {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func heading(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return writeAll(w, "<h1>", templ.EscapeString(title), "</h1>\n")
	})
}

func uploadForm(v PageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		allowed := ""
		if len(v.Allowed) > 0 {
			allowed = "<br>Type must be one of: " + templ.EscapeString(strings.Join(v.Allowed, ", "))
		}
		order := ""
		if v.AcceptOrder {
			order = `<label>Schedule (optional, Time + Date) <input type="file" name="order_file" accept=".csv,.tsv,.txt,.xlsx"></label>` + "\n"
		}
		return writeAll(w,
			`<form class="box" method="post" enctype="multipart/form-data"`, attr("action", "/"+v.Pipeline+"/upload"), ">\n",
			"<p>Required columns: ", templ.EscapeString(strings.Join(v.Required, ", ")), allowed, "</p>\n",
			`<label>Data file <input type="file" name="file" accept=".csv,.tsv,.txt,.xlsx" required></label>`, "\n",
			order,
			`<button type="submit">Upload</button>`, templ.EscapeString(fmt.Sprintf(" (max %d MB)", v.MaxUploadMB)),
			"\n</form>\n",
		)
	})
}

func currentFile(pipeline string, u *UploadInfo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		schedule := ""
		if u.OrderName != "" {
			schedule = "<br>Schedule: " + templ.EscapeString(u.OrderName)
		}
		meta := fmt.Sprintf("(%s, uploaded %s, id %s)", formatBytes(u.Size), formatDateTime(u.Uploaded), truncateID(u.ID))
		return writeAll(w,
			`<form class="box" method="post"`, attr("action", "/"+pipeline+"/clear"), ">",
			"Current file: <strong>", templ.EscapeString(u.Filename), "</strong> ", templ.EscapeString(meta),
			schedule,
			` <button type="submit">Clear</button></form>`, "\n",
		)
	})
}

func errorBox(v PageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := "upload"
		if v.Upload != nil {
			name = v.Upload.Filename
		}
		return writeAll(w,
			`<div class="box error"><strong>Could not process `, templ.EscapeString(name), ":</strong> ",
			templ.EscapeString(v.Err.Error()), "</div>\n",
		)
	})
}

func chartBox(v PageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := writeAll(w, `<div class="box">`, "\n", `<div class="legend">`); err != nil {
			return err
		}
		for _, e := range v.Legend {
			class, title := "", "Hide "+e.Condition
			if e.Hidden {
				class, title = attr("class", "off"), "Show "+e.Condition
			}
			if err := writeAll(w,
				"<a", href(e.Href), class, attr("title", title), ">",
				`<span class="swatch"`, attr("style", "background:"+e.Colour), "></span>",
				templ.EscapeString(orDash(e.Condition)), "</a>",
			); err != nil {
				return err
			}
		}
		return writeAll(w,
			"</div>\n<img class=\"chart\"", attr("src", string(templ.URL(v.ChartURL))), attr("alt", v.Result.Title+" chart"), ">\n",
			"</div>\n",
		)
	})
}

// valuesTable lists every aggregate; each row carries its summary as a tooltip.
func valuesTable(pipeline string, res *analysis.Result, hideQuery string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := writeAll(w,
			`<div class="box"><table><thead><tr><th>`, templ.EscapeString(res.XLabel),
			"</th><th>Condition</th><th>n</th><th>Mean</th><th>SEM</th><th>Lower</th><th>Upper</th></tr></thead>\n<tbody>\n",
		); err != nil {
			return err
		}
		for _, a := range res.Aggregates {
			tip := fmt.Sprintf("%s, %s: mean %s ± %s (SEM)", orDash(a.Condition), a.Order, formatStat(a.Mean), formatStat(a.SEM))
			cells := []string{a.Order, orDash(a.Condition), fmt.Sprintf("%d", a.Count),
				formatStat(a.Mean), formatStat(a.SEM), formatStat(a.Lower), formatStat(a.Upper)}
			if err := writeAll(w, "<tr", attr("title", tip), ">"); err != nil {
				return err
			}
			for _, c := range cells {
				if err := writeAll(w, "<td>", templ.EscapeString(c), "</td>"); err != nil {
					return err
				}
			}
			if err := writeAll(w, "</tr>\n"); err != nil {
				return err
			}
		}
		if err := writeAll(w, "</tbody></table>\n<p>Download: "); err != nil {
			return err
		}
		for i, ext := range []string{"json", "xlsx", "md"} {
			sep := ""
			if i > 0 {
				sep = " · "
			}
			if err := writeAll(w, sep, "<a", href(fmt.Sprintf("/%s/summary.%s", pipeline, ext)), ">", ext, "</a>"); err != nil {
				return err
			}
		}
		return writeAll(w, " · <a", href("/"+pipeline+"/chart.svg"+hideQuery), ">svg</a></p>\n</div>\n")
	})
}

func notes(warnings []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(warnings) == 0 {
			return nil
		}
		if err := writeAll(w, `<div class="box warn"><strong>Notes</strong><ul>`); err != nil {
			return err
		}
		for _, msg := range warnings {
			if err := writeAll(w, "<li>", templ.EscapeString(msg), "</li>"); err != nil {
				return err
			}
		}
		return writeAll(w, "</ul></div>\n")
	})
}
