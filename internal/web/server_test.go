package web

import (
	"bytes"
	"context"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ministats/internal/config"
	"github.com/JonMunkholm/ministats/internal/core"
	"github.com/JonMunkholm/ministats/internal/web/middleware"
)

const peopleCSV = "name,age,score\nann,31,1.5\nbo,42,2.5\ncy,3,\n"

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	cfg.Rate.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	svc := core.NewService(core.Options{
		MaxRows:     cfg.Upload.MaxRows,
		FilterLimit: cfg.Query.FilterMaxRecords,
		DefaultBins: cfg.Query.PlotDefaultBins,
		MaxBins:     cfg.Query.PlotMaxBins,
	}, core.NewIngestLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime), core.NewMemoryHistory(16))

	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func uploadRequest(t *testing.T, filename, body string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	part, err := mpw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mpw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	return serve(s, httptest.NewRequest(http.MethodGet, target, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func mustUpload(t *testing.T, s *Server, filename, body string) map[string]any {
	t.Helper()
	rec := serve(s, uploadRequest(t, filename, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "No dataset loaded yet.")

	mustUpload(t, s, "a<b>&c.csv", peopleCSV)
	rec = get(s, "/")
	assert.Contains(t, rec.Body.String(), "a&lt;b&gt;&amp;c.csv")
	assert.Contains(t, rec.Body.String(), "3 rows, 3 columns")
}

func TestReadsBeforeUpload(t *testing.T) {
	s := newTestServer(t, nil)

	for _, target := range []string{"/columns", "/summary", "/column/a", "/filter?col=a&value=1", "/plot/a"} {
		t.Run(target, func(t *testing.T) {
			rec := get(s, target)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "Bad Request", body["error"])
			assert.Equal(t, "No dataset uploaded. Use POST /upload to upload a CSV.", body["message"])
			assert.Equal(t, "DATA001", body["code"])
		})
	}

	body := decode(t, get(s, "/meta"))
	assert.Equal(t, false, body["loaded"])
}

func TestUploadAndQuery(t *testing.T) {
	s := newTestServer(t, nil)

	up := mustUpload(t, s, "people.csv", peopleCSV)
	assert.Equal(t, "success", up["status"])
	assert.NotEmpty(t, up["dataset_id"])
	assert.EqualValues(t, 3, up["rows"])
	assert.EqualValues(t, 3, up["columns"])
	assert.Equal(t, []any{"name", "age", "score"}, up["columns_list"])

	cols := decode(t, get(s, "/columns"))
	assert.Equal(t, []any{"name", "age", "score"}, cols["columns"])

	sum := decode(t, get(s, "/summary"))
	require.Contains(t, sum, "age")
	require.Contains(t, sum, "score")
	assert.NotContains(t, sum, "name")
	age := sum["age"].(map[string]any)
	assert.EqualValues(t, 3, age["count"])
	assert.EqualValues(t, 3, age["min"])
	assert.EqualValues(t, 42, age["max"])
	assert.EqualValues(t, 2, sum["score"].(map[string]any)["count"])

	col := decode(t, get(s, "/column/score"))
	assert.Equal(t, "score", col["column"])
	assert.Equal(t, "float64", col["dtype"])
	assert.Equal(t, []any{1.5, 2.5, nil}, col["values"])

	meta := decode(t, get(s, "/meta"))
	assert.Equal(t, true, meta["loaded"])
	assert.Equal(t, "people.csv", meta["filename"])
	assert.Equal(t, up["dataset_id"], meta["dataset_id"])
}

func TestSummary_NoNumericColumns(t *testing.T) {
	s := newTestServer(t, nil)
	mustUpload(t, s, "words.csv", "a,b\nx,y\n")

	body := decode(t, get(s, "/summary"))
	assert.Equal(t, "No numeric columns present", body["message"])
	assert.Equal(t, []any{}, body["numeric_columns"])
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Upload.MaxRows = 2
		c.Upload.MaxFileSize = 1 << 10
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mpw := multipart.NewWriter(&buf)
		require.NoError(t, mpw.WriteField("other", "x"))
		require.NoError(t, mpw.Close())
		req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		req.Header.Set("Content-Type", mpw.FormDataContentType())

		rec := serve(s, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing 'file' in form-data.", decode(t, rec)["message"])
	})

	t.Run("empty filename", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "", "a\n1\n"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Empty filename.", decode(t, rec)["message"])
	})

	t.Run("too many rows", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "big.csv", "a\n1\n2\n3\n"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "CSV too large (rows > 2).", decode(t, rec)["message"])
	})

	t.Run("body over size limit", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "huge.csv", "a\n"+strings.Repeat("1\n", 2048)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["message"], "File too large")
	})

	t.Run("empty file", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "empty.csv", ""))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["message"], "Failed to read CSV")
	})

	assert.Equal(t, false, decode(t, get(s, "/meta"))["loaded"], "failed uploads install nothing")

	hist := decode(t, get(s, "/history"))
	events := hist["events"].([]any)
	assert.Len(t, events, 2, "only rejections from parsing are recorded")
	assert.Equal(t, "rejected", events[0].(map[string]any)["status"])
}

func TestFilter(t *testing.T) {
	s := newTestServer(t, nil)

	var csv strings.Builder
	csv.WriteString("n,label\n")
	for i := 0; i < 150; i++ {
		csv.WriteString("3,row" + strconv.Itoa(i) + "\n")
	}
	csv.WriteString("4,\n")
	mustUpload(t, s, "n.csv", csv.String())

	body := decode(t, get(s, "/filter?col=n&value=3"))
	assert.Equal(t, map[string]any{"col": "n", "value": float64(3)}, body["filter"])
	assert.EqualValues(t, 100, body["rows_returned"])
	assert.EqualValues(t, 150, body["rows_total"])
	data := body["data"].([]any)
	require.Len(t, data, 100)
	assert.Equal(t, map[string]any{"n": float64(3), "label": "row0"}, data[0])

	assert.Contains(t, get(s, "/filter?col=n&value=3").Body.String(), `"filter":{"col":"n","value":3}`)

	rec := get(s, "/filter?col=n&value=3.0")
	assert.Contains(t, rec.Body.String(), `"filter":{"col":"n","value":3.0}`, "the echo shows the float operand")
	body = decode(t, rec)
	assert.EqualValues(t, 0, body["rows_total"], "a float never matches an int column")
	assert.Equal(t, []any{}, body["data"])

	body = decode(t, get(s, "/filter?col=label&value="))
	assert.EqualValues(t, 0, body["rows_total"], "an empty cell is null, not an empty string")

	rec = get(s, "/filter?col=n")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Require query params 'col' and 'value'", decode(t, rec)["message"])

	rec = get(s, "/filter?col=missing&value=1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilter_IntegerColumnWithBlanks(t *testing.T) {
	s := newTestServer(t, nil)
	mustUpload(t, s, "n.csv", "n,label\n3,a\n,b\n3,c\n")

	body := decode(t, get(s, "/filter?col=n&value=3"))
	assert.EqualValues(t, 2, body["rows_total"])
	assert.Equal(t, []any{
		map[string]any{"n": float64(3), "label": "a"},
		map[string]any{"n": float64(3), "label": "c"},
	}, body["data"])

	body = decode(t, get(s, "/filter?col=n&value=3.0"))
	assert.EqualValues(t, 0, body["rows_total"])

	col := decode(t, get(s, "/column/n"))
	assert.Equal(t, "float64", col["dtype"])
	assert.Equal(t, []any{float64(3), nil, float64(3)}, col["values"])
}

func TestColumnNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	mustUpload(t, s, "people.csv", peopleCSV)

	rec := get(s, "/column/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Not Found", body["error"])
	assert.Equal(t, "DATA002", body["code"])
}

func TestColumnNameWithEscapes(t *testing.T) {
	s := newTestServer(t, nil)
	mustUpload(t, s, "odd.csv", "a/b,c d\n1,2\n")

	rec := get(s, "/column/a%2Fb")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "a/b", decode(t, rec)["column"])

	rec = get(s, "/column/c%20d")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "c d", decode(t, rec)["column"])
}

func TestPlot(t *testing.T) {
	s := newTestServer(t, nil)
	mustUpload(t, s, "people.csv", peopleCSV)

	rec := get(s, "/plot/age?bins=5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "age_hist.png")
	_, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)

	rec = get(s, "/plot/name")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DATA003", decode(t, rec)["code"])

	rec = get(s, "/plot/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(s, "/plot/nope?bins=9999")
	assert.Equal(t, http.StatusNotFound, rec.Code, "an unknown column wins over a bad bin count")

	for _, bins := range []string{"abc", "-1", "501"} {
		rec = get(s, "/plot/age?bins="+bins)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "bins=%s", bins)
	}
}

func TestUploadKey(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Security.UploadKey = "s3cret" })

	rec := serve(s, uploadRequest(t, "people.csv", peopleCSV))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH001", decode(t, rec)["code"])

	req := uploadRequest(t, "people.csv", peopleCSV)
	req.Header.Set(middleware.UploadKeyHeader, "s3cret")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusOK, get(s, "/columns").Code, "reads need no key")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	assert.Equal(t, http.StatusOK, get(s, "/health").Code)
	assert.Equal(t, http.StatusOK, get(s, "/health").Code)

	rec := get(s, "/health")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	body := decode(t, rec)
	assert.Equal(t, "Too Many Requests", body["error"])
	assert.Equal(t, "RATE001", body["code"])
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, nil)

	mustUpload(t, s, "first.csv", "a\n1\n")
	mustUpload(t, s, "second.csv", "a\n2\n")

	events := decode(t, get(s, "/history"))["events"].([]any)
	require.Len(t, events, 2)
	newest := events[0].(map[string]any)
	assert.Equal(t, "second.csv", newest["filename"])
	assert.Equal(t, "accepted", newest["status"])

	events = decode(t, get(s, "/history?limit=1"))["events"].([]any)
	assert.Len(t, events, 1)

	assert.Equal(t, http.StatusBadRequest, get(s, "/history?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(s, "/history?limit=x").Code)
}
