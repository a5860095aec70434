package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runboard/internal/dashboard/handler"
	"runboard/internal/dashboard/live"
	"runboard/internal/runs"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

type fixture struct {
	root  string
	paths *runs.PathList
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	now := time.Now().Unix()
	write(t, root, "vision/runs/r1/config.json", `{"lr": 0.1}`)
	write(t, root, "vision/runs/r1/metrics.json", `{"training_metrics":[{"epoch":1,"step":0,"timestamp":1}],"validation_metrics":[{"epoch":1,"timestamp":`+itoa(now)+`}],"metadata":{"run_id":"r1"}}`)
	write(t, root, "vision/runs/r1/plots/loss_curves.png", "PNG")
	write(t, root, "vision/runs/r1/plots/loss_curves_epoch_1.png", "PNG1")
	write(t, root, "vision/runs/r1/samples/b.jpeg", "JPEG")
	write(t, root, "vision/runs/r1/samples/a.png", "PNG")
	write(t, root, "vision/runs/broken/metrics.json", `{{{`)
	write(t, root, "vision/secret.txt", "top secret")

	paths := runs.NewPathList([]string{filepath.Join(root, "*", "runs")})
	engine := runs.NewEngine(paths, runs.Options{})
	mux := NewMux(
		handler.NewRunsHandler(engine, 5*time.Second, nil),
		handler.NewConfigHandler(paths, nil),
		live.NewHub(nil, []string{"http://localhost:3000"}),
		[]string{"http://localhost:3000"},
	)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{root: root, paths: paths, srv: srv}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func (f *fixture) postPath(t *testing.T, body string) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/config/paths", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestRoot(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"ML Training Dashboard API"}`, string(body))
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/runs")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Runs []map[string]any `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Runs, 2)

	byID := map[string]map[string]any{}
	for _, r := range out.Runs {
		byID[r["id"].(string)] = r
	}
	r1 := byID["r1"]
	assert.Equal(t, "vision", r1["project"])
	assert.Equal(t, "running", r1["status"])
	assert.Equal(t, float64(1), r1["metrics_count"])
	assert.Equal(t, float64(1), r1["epochs"])
	assert.NotEmpty(t, r1["created_at"])

	broken := byID["broken"]
	assert.Equal(t, float64(0), broken["metrics_count"])
	assert.Equal(t, float64(0), broken["epochs"])
	assert.Equal(t, "completed", broken["status"])
	assert.Equal(t, map[string]any{}, broken["config"])
}

func TestRunDetail(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/runs/r1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var d runs.Detail
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, "r1", d.ID)
	assert.Equal(t, runs.StatusRunning, d.Status)
	assert.Equal(t, []string{"loss_curves.png", "loss_curves_epoch_1.png"}, d.Plots)
	assert.Equal(t, []string{"a.png", "b.jpeg"}, d.Samples)
	assert.Contains(t, d.Metrics, "metadata")

	resp, body = f.get(t, "/api/runs/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Run not found"}`, string(body))

	resp, _ = f.get(t, "/api/runs/r1?project=other")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeFile(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/files/r1/plots/loss_curves.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PNG", string(body))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	cases := []string{"/api/files/r1/plots/none.png", "/api/files/r1/plots"}
	if os.Symlink(filepath.Join(f.root, "vision", "secret.txt"), filepath.Join(f.root, "vision", "runs", "r1", "leak.txt")) == nil {
		cases = append(cases, "/api/files/r1/leak.txt")
	}
	for _, p := range cases {
		resp, body = f.get(t, p)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
		assert.JSONEq(t, `{"error":"File not found"}`, string(body), p)
	}

	resp, body = f.get(t, "/api/files/ghost/config.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Run not found"}`, string(body))
}

func TestConfigEndpoints(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg struct {
		TrainingPaths []string `json:"training_paths"`
		ScanResults   []string `json:"scan_results"`
	}
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, []string{filepath.Join(f.root, "*", "runs")}, cfg.TrainingPaths)
	assert.Equal(t, []string{filepath.Join(f.root, "vision", "runs")}, cfg.ScanResults)

	extra := filepath.Join(f.root, "extra")
	resp, out := f.postPath(t, `{"path":`+quote(extra)+`}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Added path: "+extra, out["message"])
	assert.Equal(t, 2, f.paths.Len())

	resp, out = f.postPath(t, `{"path":`+quote(extra)+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid or duplicate path", out["error"])
	assert.Equal(t, 2, f.paths.Len())

	resp, out = f.postPath(t, `{"path":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid or duplicate path", out["error"])

	resp, _ = f.postPath(t, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 2, f.paths.Len())
}

func TestAddedPathIsScanned(t *testing.T) {
	f := newFixture(t)
	write(t, f.root, "scratch/late/config.json", `{}`)

	resp, _ := f.postPath(t, `{"path":`+quote(filepath.Join(f.root, "scratch"))+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.get(t, "/api/runs/late")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
