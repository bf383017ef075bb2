package trace

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrNotFound       = errors.New("trace not found")
	ErrInvalidTraceID = errors.New("invalid trace id")
)

// Repository persists finished run traces.
type Repository interface {
	Save(ctx context.Context, trace *Trace) error
}

// FileRepository stores one JSON document per run as {dir}/{trace_id}.json.
type FileRepository struct {
	dir string
}

func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

func (r *FileRepository) path(traceID string) (string, error) {
	if traceID == "" || strings.ContainsAny(traceID, `/\`) || strings.Contains(traceID, "..") {
		return "", goerr.Wrap(ErrInvalidTraceID, "trace id cannot be used as a file name", goerr.V("trace_id", traceID))
	}
	return filepath.Join(r.dir, traceID+".json"), nil
}

// Save writes to a temporary file first and renames it, so readers never see a partial trace.
func (r *FileRepository) Save(_ context.Context, trace *Trace) error {
	dst, err := r.path(trace.TraceID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create trace directory", goerr.V("dir", r.dir))
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace", goerr.V("trace_id", trace.TraceID))
	}

	tmp, err := os.CreateTemp(r.dir, ".trace-*.tmp")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary trace file", goerr.V("dir", r.dir))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write trace file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close trace file", goerr.V("path", tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return goerr.Wrap(err, "failed to move trace file into place", goerr.V("path", dst))
	}
	return nil
}

// Get reads a trace saved by Save.
func (r *FileRepository) Get(_ context.Context, traceID string) (*Trace, error) {
	src, err := r.path(traceID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, goerr.Wrap(ErrNotFound, "no such trace file", goerr.V("trace_id", traceID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trace file", goerr.V("path", src))
	}

	var tr Trace
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trace file", goerr.V("path", src))
	}
	if tr.TraceID == "" {
		return nil, goerr.New("file does not hold a trace", goerr.V("path", src))
	}
	return &tr, nil
}
