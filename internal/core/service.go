package core

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ministats/internal/dataset"
	"github.com/JonMunkholm/ministats/internal/logging"
	"github.com/JonMunkholm/ministats/internal/plot"
)

// ErrNoDataset is returned by every read operation before the first
// successful upload.
var ErrNoDataset = dataset.Errorf(dataset.KindNotLoaded,
	"No dataset uploaded. Use POST /upload to upload a CSV.")

// TimestampLayout formats upload and health timestamps as UTC ISO-8601.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// DefaultMaxBins caps the histogram bin count a client may ask for.
const DefaultMaxBins = plot.DefaultMaxBins

// Dataset is an installed table plus its upload metadata. It is immutable
// once installed.
type Dataset struct {
	ID         string
	Filename   string
	UploadedAt time.Time
	Table      *dataset.Table
}

// Options tunes the service. Zero fields take package defaults.
type Options struct {
	MaxRows     int
	FilterLimit int
	DefaultBins int
	MaxBins     int
}

func (o Options) withDefaults() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = dataset.DefaultMaxRows
	}
	if o.FilterLimit <= 0 {
		o.FilterLimit = dataset.DefaultFilterLimit
	}
	if o.DefaultBins <= 0 {
		o.DefaultBins = plot.DefaultBins
	}
	if o.MaxBins <= 0 {
		o.MaxBins = DefaultMaxBins
	}
	return o
}

// Service owns the process-wide dataset slot. Readers load one snapshot per
// call, so a concurrent upload is either fully visible or not at all. A
// failed upload never replaces the current snapshot.
type Service struct {
	current atomic.Pointer[Dataset]

	opts    Options
	limiter *IngestLimiter
	history HistoryStore
	plots   *plot.Renderer
	now     func() time.Time
}

// NewService wires a Service. A nil limiter or history falls back to the
// package defaults.
func NewService(opts Options, limiter *IngestLimiter, history HistoryStore) *Service {
	if limiter == nil {
		limiter = NewIngestLimiter(0, 0)
	}
	if history == nil {
		history = NewMemoryHistory(0)
	}
	opts = opts.withDefaults()
	plotOpts := plot.DefaultOptions
	plotOpts.MaxBins = opts.MaxBins
	return &Service{
		opts:    opts,
		limiter: limiter,
		history: history,
		plots:   plot.NewRenderer(plotOpts),
		now:     time.Now,
	}
}

// Upload parses r as CSV and, on success, installs it as the current
// dataset. Concurrent uploads are last-write-wins.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*Dataset, error) {
	log := logging.WithFields(ctx, "filename", filename)

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		s.recordUpload(ctx, UploadEvent{Filename: filename, Status: UploadRejected, Reason: err.Error()})
		return nil, err
	}
	defer release()

	tbl, err := dataset.Ingest(&contextReader{ctx: ctx, r: r}, dataset.IngestOptions{MaxRows: s.opts.MaxRows})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		log.Info("upload rejected", "kind", dataset.KindOf(err).String(), "error", err)
		s.recordUpload(ctx, UploadEvent{Filename: filename, Status: UploadRejected, Reason: err.Error()})
		return nil, err
	}

	ds := &Dataset{
		ID:         uuid.NewString(),
		Filename:   filename,
		UploadedAt: s.now().UTC(),
		Table:      tbl,
	}
	s.current.Store(ds)

	log.Info("dataset installed",
		"dataset_id", ds.ID,
		"rows", tbl.Rows(),
		"columns", len(tbl.Columns()),
	)
	s.recordUpload(ctx, UploadEvent{
		DatasetID: ds.ID,
		Filename:  filename,
		Status:    UploadAccepted,
		Rows:      tbl.Rows(),
		Columns:   len(tbl.Columns()),
	})
	return ds, nil
}

// recordUpload stores ev. History is best effort: a failing store is logged
// and never fails the upload itself.
func (s *Service) recordUpload(ctx context.Context, ev UploadEvent) {
	client := ClientFromContext(ctx)
	ev.ID = uuid.NewString()
	ev.IPAddress = client.IPAddress
	ev.UserAgent = client.UserAgent
	ev.CreatedAt = s.now().UTC()

	if err := s.history.Record(context.WithoutCancel(ctx), ev); err != nil {
		logging.FromContext(ctx).Error("record upload event", "error", err, "status", ev.Status)
	}
}

// Current returns the installed dataset or ErrNoDataset.
func (s *Service) Current() (*Dataset, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return ds, nil
}

// Columns lists column names in file order.
func (s *Service) Columns() ([]string, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	return dataset.Schema(ds.Table), nil
}

// Summary describes every numeric column.
func (s *Service) Summary(ctx context.Context) (dataset.Summary, error) {
	ds, err := s.Current()
	if err != nil {
		return dataset.Summary{}, err
	}
	return dataset.Summarize(ctx, ds.Table)
}

// Column returns every value of one column.
func (s *Service) Column(name string) (dataset.ColumnData, error) {
	ds, err := s.Current()
	if err != nil {
		return dataset.ColumnData{}, err
	}
	return dataset.ColumnValues(ds.Table, name)
}

// Filter returns the rows whose column equals the coerced raw value, capped
// at the configured record limit.
func (s *Service) Filter(column, raw string) (dataset.FilterResult, error) {
	ds, err := s.Current()
	if err != nil {
		return dataset.FilterResult{}, err
	}
	return dataset.Filter(ds.Table, column, raw, s.opts.FilterLimit)
}

// Histogram renders a PNG histogram of a numeric column. A zero bin count
// selects the configured default. An unknown column is reported before a bad
// bin count.
func (s *Service) Histogram(column string, bins int) ([]byte, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	if bins == 0 {
		bins = s.opts.DefaultBins
	}
	return s.plots.Render(ds.Table, column, bins)
}

// Meta describes the installed dataset. Detail fields are omitted from JSON
// while nothing is loaded.
type Meta struct {
	Loaded bool `json:"loaded"`
	*DatasetMeta
}

// DatasetMeta is the loaded half of Meta.
type DatasetMeta struct {
	DatasetID  string   `json:"dataset_id"`
	Filename   string   `json:"filename"`
	UploadedAt string   `json:"uploaded_at"`
	Rows       int      `json:"rows"`
	Columns    []string `json:"columns"`
}

// Meta reports what is currently loaded. It never fails.
func (s *Service) Meta() Meta {
	ds := s.current.Load()
	if ds == nil {
		return Meta{}
	}
	return Meta{
		Loaded: true,
		DatasetMeta: &DatasetMeta{
			DatasetID:  ds.ID,
			Filename:   ds.Filename,
			UploadedAt: ds.UploadedAt.Format(TimestampLayout),
			Rows:       ds.Table.Rows(),
			Columns:    dataset.Schema(ds.Table),
		},
	}
}

// History returns the most recent upload events, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]UploadEvent, error) {
	events, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []UploadEvent{}
	}
	return events, nil
}

// IngestStatus reports ingest slot usage.
func (s *Service) IngestStatus() IngestLimiterStatus {
	return s.limiter.Status()
}

// Drain waits for in-flight uploads to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// contextReader stops reading once ctx is done, so an abandoned request does
// not keep parsing a large upload.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
