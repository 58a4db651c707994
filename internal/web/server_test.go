package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gripCSV = "Trial,Average,Week,Type\n1,10,0,Sham\n1,12,1,Sham\n2,20,0,VNS\n2,22,1,VNS\n3,21,1,VNS\n"

const cylinderCSV = "Animal ID,Date,Left,Right,Time,Type\n" +
	"R1,2024-01-01,3,7,Baseline,VNS\n" +
	"R2,2024-01-01,5,5,Baseline,Sham\n" +
	"R1,2024-02-05,2,8,Week2,VNS\n" +
	"R2,2024-02-05,0,0,Week2,Sham\n" +
	"R1,2024-03-01,2,8,Wek4,VNS\n"

func testServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Config{MaxUploadMB: 1, ChartWidth: 400, ChartHeight: 300}, nil)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
}

func postUpload(t *testing.T, s *Server, pipeline string, files map[string][2]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/"+pipeline+"/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, s, req)
}

func TestRootRedirects(t *testing.T) {
	rec := get(t, testServer(t), "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cylinder", rec.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	rec := get(t, testServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestEmptyTabPromptsForUpload(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/grip")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Grip Strength</h1>")
	assert.Contains(t, body, "Upload a CSV or XLSX file")
	assert.NotContains(t, body, `name="order_file"`)

	assert.Contains(t, get(t, s, "/cylinder").Body.String(), `name="order_file"`)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/grip/chart.png").Code)
}

func TestUnknownPipeline(t *testing.T) {
	s := testServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/rotarod").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/rotarod/summary.json").Code)
}

func TestGripUploadAndDownloads(t *testing.T) {
	s := testServer(t)
	rec := postUpload(t, s, "grip", map[string][2]string{"file": {"grip.csv", gripCSV}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/grip", rec.Header().Get("Location"))

	page := get(t, s, "/grip").Body.String()
	assert.Contains(t, page, "grip.csv")
	assert.Contains(t, page, "/grip/chart.png?")
	assert.Contains(t, page, `href="/grip?hide=Sham"`)
	assert.Contains(t, page, "<td>Sham</td>")
	assert.NotContains(t, page, "Could not process")

	png := get(t, s, "/grip/chart.png")
	require.Equal(t, http.StatusOK, png.Code)
	assert.Equal(t, "image/png", png.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(png.Body.Bytes(), []byte("\x89PNG")))

	svg := get(t, s, "/grip/chart.svg?hide=VNS")
	require.Equal(t, http.StatusOK, svg.Code)
	assert.Contains(t, svg.Body.String(), "<svg")

	js := get(t, s, "/grip/summary.json")
	require.Equal(t, http.StatusOK, js.Code)
	var decoded struct {
		Pipeline   string            `json:"pipeline"`
		Order      []string          `json:"order"`
		Aggregates []json.RawMessage `json:"aggregates"`
	}
	require.NoError(t, json.Unmarshal(js.Body.Bytes(), &decoded))
	assert.Equal(t, "grip", decoded.Pipeline)
	assert.Equal(t, []string{"0", "1"}, decoded.Order)
	assert.Len(t, decoded.Aggregates, 4)

	md := get(t, s, "/grip/summary.md")
	assert.Contains(t, md.Body.String(), "[GROUP MEANS]")

	xl := get(t, s, "/grip/summary.xlsx")
	require.Equal(t, http.StatusOK, xl.Code)
	assert.Contains(t, xl.Header().Get("Content-Disposition"), "grip-summary.xlsx")
	assert.True(t, bytes.HasPrefix(xl.Body.Bytes(), []byte("PK")))
}

func TestInlineChartFollowsConfiguredFormat(t *testing.T) {
	s := NewServer(Config{ChartFormat: "svg"}, nil)
	postUpload(t, s, "grip", map[string][2]string{"file": {"grip.csv", gripCSV}})
	assert.Contains(t, get(t, s, "/grip").Body.String(), "/grip/chart.svg?v=")
}

func TestSingleLabelUploadCharts(t *testing.T) {
	s := testServer(t)
	postUpload(t, s, "cylinder", map[string][2]string{"file": {"cyl.csv",
		"Animal ID,Date,Left,Right,Time,Type\nR1,2024-01-01,3,7,Baseline,VNS\nR2,2024-01-01,5,5,Baseline,Sham\n"}})
	rec := get(t, s, "/cylinder/chart.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestInvalidGripDoesNotAffectCylinder(t *testing.T) {
	s := testServer(t)
	bad := strings.Replace(gripCSV, "2,20,0,VNS", "2,20,0,Control", 1)
	postUpload(t, s, "grip", map[string][2]string{"file": {"grip.csv", bad}})
	postUpload(t, s, "cylinder", map[string][2]string{"file": {"cyl.csv", cylinderCSV}})

	grip := get(t, s, "/grip").Body.String()
	assert.Contains(t, grip, "Could not process grip.csv")
	assert.Contains(t, grip, "Type column must only contain")
	assert.NotContains(t, grip, "<table>")
	assert.Equal(t, http.StatusUnprocessableEntity, get(t, s, "/grip/chart.png").Code)

	cyl := get(t, s, "/cylinder").Body.String()
	assert.NotContains(t, cyl, "Could not process")
	assert.Contains(t, cyl, "<td>Baseline</td>")
	assert.Equal(t, http.StatusOK, get(t, s, "/cylinder/chart.png").Code)
}

func TestMissingColumnsAreListed(t *testing.T) {
	s := testServer(t)
	postUpload(t, s, "cylinder", map[string][2]string{"file": {"cyl.csv", "Animal ID,Date,Time,Type\nR1,2024-01-01,Baseline,VNS\n"}})
	page := get(t, s, "/cylinder").Body.String()
	assert.Contains(t, page, "missing columns: Left, Right")
}

func TestCylinderScheduleDropsUnknownLabels(t *testing.T) {
	s := testServer(t)
	schedule := "Time,Date\nWeek2,2024-02-05\nBaseline,2024-01-01\n"
	postUpload(t, s, "cylinder", map[string][2]string{
		"file":       {"cyl.csv", cylinderCSV},
		"order_file": {"schedule.csv", schedule},
	})
	page := get(t, s, "/cylinder").Body.String()
	assert.Contains(t, page, "Schedule: schedule.csv")
	assert.NotContains(t, page, "<td>Wek4</td>")
	assert.Contains(t, page, "dropped: Wek4")
}

func TestClearRemovesUpload(t *testing.T) {
	s := testServer(t)
	postUpload(t, s, "grip", map[string][2]string{"file": {"grip.csv", gripCSV}})
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/grip/clear", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, get(t, s, "/grip").Body.String(), "Upload a CSV or XLSX file")
	assert.Equal(t, http.StatusNotFound, get(t, s, "/grip/summary.json").Code)
}

func TestUploadTooLarge(t *testing.T) {
	s := testServer(t)
	big := gripCSV + strings.Repeat("9,10,0,Sham\n", 200000)
	rec := postUpload(t, s, "grip", map[string][2]string{"file": {"grip.csv", big}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, get(t, s, "/grip").Body.String(), "Upload a CSV or XLSX file")
}

func TestUploadRequiresFile(t *testing.T) {
	s := testServer(t)
	rec := postUpload(t, s, "grip", map[string][2]string{"other": {"x.csv", "a"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	s := testServer(t)
	postUpload(t, s, "grip", map[string][2]string{"file": {"grip.csv", gripCSV}})
	get(t, s, "/grip")
	body := get(t, s, "/metrics").Body.String()
	assert.Contains(t, body, `recoveryplot_uploads_total{pipeline="grip"} 1`)
	assert.Contains(t, body, `recoveryplot_pipeline_runs_total{pipeline="grip",result="ok"} 1`)
	assert.Contains(t, body, "recoveryplot_pipeline_duration_seconds_bucket")
}

func TestStartShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := NewServer(Config{Addr: addr}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
