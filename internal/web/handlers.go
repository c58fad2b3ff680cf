package web

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ministats/internal/core"
	"github.com/JonMunkholm/ministats/internal/dataset"
	"github.com/JonMunkholm/ministats/internal/logging"
	"github.com/JonMunkholm/ministats/internal/web/templates"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var (
	errMissingFile   = dataset.Errorf(dataset.KindBadInput, "Missing 'file' in form-data.")
	errEmptyFilename = dataset.Errorf(dataset.KindBadInput, "Empty filename.")
	errFilterParams  = dataset.Errorf(dataset.KindBadInput, "Require query params 'col' and 'value'")
)

var endpoints = []templates.Endpoint{
	{Method: "GET", Path: "/health", Description: "Liveness check"},
	{Method: "POST", Path: "/upload", Description: "Upload a CSV as multipart field 'file'"},
	{Method: "GET", Path: "/columns", Description: "Column names in file order"},
	{Method: "GET", Path: "/summary", Description: "Descriptive statistics for numeric columns"},
	{Method: "GET", Path: "/column/{col}", Description: "All values of one column"},
	{Method: "GET", Path: "/filter?col=&value=", Description: "Rows where col equals value (first 100)"},
	{Method: "GET", Path: "/plot/{col}?bins=", Description: "PNG histogram of a numeric column"},
	{Method: "GET", Path: "/meta", Description: "What is currently loaded"},
	{Method: "GET", Path: "/history?limit=", Description: "Recent upload attempts"},
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := templates.IndexData{
		UploadKeyUsed: s.cfg.Security.UploadKey != "",
		Endpoints:     endpoints,
	}
	if meta := s.service.Meta(); meta.Loaded {
		data.Loaded = true
		data.Filename = meta.Filename
		data.Rows = meta.Rows
		data.Columns = len(meta.Columns)
	}
	templ.Handler(templates.Index(data)).ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(core.TimestampLayout),
	})
}

type uploadResponse struct {
	Status      string   `json:"status"`
	DatasetID   string   `json:"dataset_id"`
	Rows        int      `json:"rows"`
	Columns     int      `json:"columns"`
	ColumnsList []string `json:"columns_list"`
}

// handleUpload reads the multipart field "file" and installs it as the
// current dataset.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, int64(limit))

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, dataset.Wrap(dataset.KindBadInput, err, "File too large (limit %s).", limit))
			return
		}
		respondError(w, r, errMissingFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		// A part without a filename is parsed as a plain form value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			respondError(w, r, errEmptyFilename)
			return
		}
		respondError(w, r, errMissingFile)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		respondError(w, r, errEmptyFilename)
		return
	}

	r = withClient(r)
	ds, err := s.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("upload accepted",
		"filename", ds.Filename,
		"size_bytes", header.Size,
		"rows", ds.Table.Rows(),
	)
	writeJSON(w, uploadResponse{
		Status:      "success",
		DatasetID:   ds.ID,
		Rows:        ds.Table.Rows(),
		Columns:     len(ds.Table.Columns()),
		ColumnsList: dataset.Schema(ds.Table),
	})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.service.Columns()
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string][]string{"columns": cols})
}

type emptySummary struct {
	Message        string   `json:"message"`
	NumericColumns []string `json:"numeric_columns"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.Summary(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if sum.Empty() {
		writeJSON(w, emptySummary{Message: "No numeric columns present", NumericColumns: []string{}})
		return
	}
	writeJSON(w, sum.Map())
}

func (s *Server) handleColumn(w http.ResponseWriter, r *http.Request) {
	col, err := s.service.Column(pathParam(r, "col"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, col)
}

type filterSpec struct {
	Col   string        `json:"col"`
	Value dataset.Value `json:"value"`
}

type filterResponse struct {
	Filter       filterSpec       `json:"filter"`
	RowsReturned int              `json:"rows_returned"`
	RowsTotal    int              `json:"rows_total"`
	Data         []dataset.Record `json:"data"`
}

// handleFilter answers /filter?col=&value=. An empty value is allowed and
// matches empty strings; a missing one is not.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Current(); err != nil {
		respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	col := q.Get("col")
	values, hasValue := q["value"]
	if col == "" || !hasValue {
		respondError(w, r, errFilterParams)
		return
	}

	res, err := s.service.Filter(col, values[0])
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, filterResponse{
		Filter:       filterSpec{Col: res.Column, Value: res.Value},
		RowsReturned: res.RowsReturned,
		RowsTotal:    res.RowsTotal,
		Data:         res.Records,
	})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Current(); err != nil {
		respondError(w, r, err)
		return
	}

	bins := 0
	if raw := r.URL.Query().Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, dataset.Errorf(dataset.KindBadInput, "Query param 'bins' must be an integer."))
			return
		}
		bins = n
	}

	col := pathParam(r, "col")
	img, err := s.service.Histogram(col, bins)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": col + "_hist.png"}))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Write(img)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Meta())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(w, r, dataset.Errorf(dataset.KindBadInput,
				"Query param 'limit' must be between 1 and %d.", maxHistoryLimit))
			return
		}
		limit = n
	}

	events, err := s.service.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"events": events})
}

// pathParam returns a decoded chi URL parameter. chi matches on the raw path
// when the request carried escapes, so such values arrive still encoded.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
