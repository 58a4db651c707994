package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"time"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
	"github.com/KaramelBytes/recoveryplot/internal/chart"
	"github.com/KaramelBytes/recoveryplot/internal/table"
	"github.com/KaramelBytes/recoveryplot/internal/utils"
	"github.com/KaramelBytes/recoveryplot/internal/web/templates"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNoUpload = errors.New("no data uploaded")

func (s *Server) tabs(active string) []templates.Tab {
	var tabs []templates.Tab
	for _, p := range analysis.Pipelines() {
		tabs = append(tabs, templates.Tab{Name: p.Name, Title: p.Title, Active: p.Name == active})
	}
	return tabs
}

// pipeline resolves the {pipeline} URL parameter, writing a 404 when unknown.
func (s *Server) pipeline(w http.ResponseWriter, r *http.Request) (analysis.Pipeline, bool) {
	name := chi.URLParam(r, "pipeline")
	p, ok := analysis.Lookup(name)
	if !ok || p.Name != name {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_ = templates.NotFound(s.tabs(""), fmt.Sprintf("pipeline %q", name)).Render(r.Context(), w)
		return analysis.Pipeline{}, false
	}
	return p, true
}

// run re-executes the pipeline from the stored upload.
func (s *Server) run(p analysis.Pipeline, u *upload) (*analysis.Result, error) {
	if u == nil {
		return nil, errNoUpload
	}
	start := time.Now()
	res, err := s.execute(p, u)
	s.metrics.duration.WithLabelValues(p.Name).Observe(time.Since(start).Seconds())

	var verr *analysis.ValidationError
	switch {
	case err == nil:
		s.metrics.runs.WithLabelValues(p.Name, "ok").Inc()
		s.logger.Debug("pipeline run", zap.String("pipeline", p.Name), zap.String("run", res.ID),
			zap.String("upload", u.ID), zap.Int("groups", len(res.Aggregates)))
	case errors.As(err, &verr):
		s.metrics.runs.WithLabelValues(p.Name, "invalid").Inc()
		s.logger.Info("validation failed", zap.String("pipeline", p.Name), zap.String("upload", u.ID),
			zap.String("kind", string(verr.Kind())), zap.Error(err))
	default:
		s.metrics.runs.WithLabelValues(p.Name, "error").Inc()
		s.logger.Warn("pipeline failed", zap.String("pipeline", p.Name), zap.String("upload", u.ID), zap.Error(err))
	}
	return res, err
}

func (s *Server) execute(p analysis.Pipeline, u *upload) (*analysis.Result, error) {
	opt := table.LoadOptions{MaxRows: s.cfg.MaxRows}
	t, err := table.Load(u.Filename, bytes.NewReader(u.Data), opt)
	if err != nil {
		return nil, err
	}
	var ropt analysis.RunOptions
	if len(u.OrderData) > 0 {
		ot, err := table.Load(u.OrderName, bytes.NewReader(u.OrderData), opt)
		if err != nil {
			return nil, fmt.Errorf("schedule: %w", err)
		}
		ropt.OrderFrom = ot
	}
	return p.Run(t, ropt)
}

func hiddenFrom(r *http.Request) []string {
	return r.URL.Query()["hide"]
}

func hideQuery(hidden []string) string {
	if len(hidden) == 0 {
		return ""
	}
	return "?" + url.Values{"hide": hidden}.Encode()
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	u := s.current(p.Name)
	hidden := hiddenFrom(r)

	v := templates.PageView{
		Tabs:        s.tabs(p.Name),
		Pipeline:    p.Name,
		Title:       p.Title,
		Required:    p.Schema.Required,
		Allowed:     p.Schema.Allowed,
		AcceptOrder: !p.Numeric,
		MaxUploadMB: s.cfg.MaxUploadMB,
		HideQuery:   hideQuery(hidden),
	}
	if u != nil {
		v.Upload = &templates.UploadInfo{
			ID: u.ID, Filename: u.Filename, Size: len(u.Data),
			OrderName: u.OrderName, Uploaded: u.Uploaded,
		}
		res, err := s.run(p, u)
		v.Result, v.Err = res, err
		if res != nil {
			v.Legend = legend(p.Name, res.Conditions(), hidden, s.cfg.Palette)
			q := url.Values{"v": {u.ID}}
			if len(hidden) > 0 {
				q["hide"] = hidden
			}
			v.ChartURL = "/" + p.Name + "/chart." + string(s.cfg.ChartFormat) + "?" + q.Encode()
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(v).Render(r.Context(), w); err != nil {
		s.logger.Warn("render page", zap.Error(err))
	}
}

// legend builds toggle links: each flips its own condition in the hide set.
func legend(pipeline string, conds, hidden []string, pal chart.Palette) []templates.LegendEntry {
	isHidden := map[string]bool{}
	for _, h := range hidden {
		isHidden[h] = true
	}
	out := make([]templates.LegendEntry, 0, len(conds))
	for _, c := range conds {
		var next []string
		for _, h := range hidden {
			if h != c {
				next = append(next, h)
			}
		}
		if !isHidden[c] {
			next = append(next, c)
		}
		sort.Strings(next)
		out = append(out, templates.LegendEntry{
			Condition: c,
			Colour:    pal.Hex(c),
			Hidden:    isHidden[c],
			Href:      "/" + pipeline + hideQuery(next),
		})
	}
	return out
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	limit := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		http.Error(w, fmt.Sprintf("upload too large or malformed (max %d MB): %v", s.cfg.MaxUploadMB, err), http.StatusRequestEntityTooLarge)
		return
	}
	name, data, err := formFile(r, "file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u := &upload{ID: uuid.NewString(), Filename: name, Data: data, Uploaded: time.Now()}
	if !p.Numeric {
		if oname, odata, err := formFile(r, "order_file"); err == nil {
			u.OrderName, u.OrderData = oname, odata
		} else if !errors.Is(err, http.ErrMissingFile) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	s.store(p.Name, u)
	s.metrics.uploads.WithLabelValues(p.Name).Inc()
	s.logger.Info("upload stored", zap.String("pipeline", p.Name), zap.String("upload", u.ID),
		zap.String("file", u.Filename), zap.Int("bytes", len(u.Data)))
	http.Redirect(w, r, "/"+p.Name, http.StatusSeeOther)
}

func formFile(r *http.Request, field string) (string, []byte, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", field, err)
	}
	return filepath.Base(hdr.Filename), data, nil
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	s.store(p.Name, nil)
	http.Redirect(w, r, "/"+p.Name, http.StatusSeeOther)
}

// result runs the pipeline for a download endpoint, writing an error
// response when there is nothing to serve.
func (s *Server) result(w http.ResponseWriter, r *http.Request) (analysis.Pipeline, *analysis.Result, bool) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return p, nil, false
	}
	res, err := s.run(p, s.current(p.Name))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, errNoUpload) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return p, nil, false
	}
	return p, res, true
}

func (s *Server) handleChart(format chart.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, res, ok := s.result(w, r)
		if !ok {
			return
		}
		var buf bytes.Buffer
		err := chart.Render(&buf, res, chart.Options{
			Format:  format,
			Width:   s.cfg.ChartWidth,
			Height:  s.cfg.ChartHeight,
			Palette: s.cfg.Palette,
			Hidden:  hiddenFrom(r),
		})
		if err != nil {
			s.logger.Warn("render chart", zap.String("run", res.ID), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ctype := "image/png"
		if format == chart.SVG {
			ctype = "image/svg+xml"
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *Server) handleSummaryJSON(w http.ResponseWriter, r *http.Request) {
	_, res, ok := s.result(w, r)
	if !ok {
		return
	}
	b, err := utils.PrettyJSON(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (s *Server) handleSummaryXLSX(w http.ResponseWriter, r *http.Request) {
	p, res, ok := s.result(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := res.WriteXLSX(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name+"-summary.xlsx"))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSummaryMarkdown(w http.ResponseWriter, r *http.Request) {
	_, res, ok := s.result(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, res.Markdown())
}
