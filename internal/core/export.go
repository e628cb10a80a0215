package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	// ErrInputNotFound is returned when the JSONL input path does not exist.
	ErrInputNotFound = errors.New("input file not found")

	// ErrNoLabels is returned by Service operations that found nothing to export.
	// ExportFile treats the same situation as a successful no-op.
	ErrNoLabels = errors.New("no labels to export")
)

// ExportResult summarizes one file export.
type ExportResult struct {
	RunID      string
	InputPath  string
	OutputPath string
	Records    int
	Skipped    int
	Written    bool // false when there was nothing to export
}

// ExportFile converts the line-delimited JSON file at inPath into CSV at outPath.
//
// A missing input fails with ErrInputNotFound before anything is read. When no
// valid records are found, a warning is logged and no file is created; this is
// not an error. Otherwise missing parent directories are created and the CSV
// replaces any existing file at outPath only once it is completely written.
func ExportFile(ctx context.Context, inPath, outPath string, logger *slog.Logger) (ExportResult, error) {
	res := ExportResult{
		RunID:      uuid.NewString(),
		InputPath:  inPath,
		OutputPath: outPath,
	}
	logger = logger.With("run_id", res.RunID)

	info, err := os.Stat(inPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, fmt.Errorf("%w: %s", ErrInputNotFound, inPath)
		}
		return res, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return res, fmt.Errorf("input %s is a directory", inPath)
	}

	f, err := os.Open(inPath)
	if err != nil {
		return res, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	logger.Info("reading labels", "path", inPath)
	parsed, err := ParseJSONL(f, logger)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", inPath, err)
	}
	res.Records = len(parsed.Records)
	res.Skipped = parsed.Skipped

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("export cancelled: %w", err)
	}

	if res.Records == 0 {
		logger.Warn("no labels to export", "lines", parsed.Lines, "skipped", parsed.Skipped)
		return res, nil
	}

	logger.Info("exporting labels to CSV", "count", res.Records, "skipped", res.Skipped)
	if err := writeCSVFile(outPath, parsed.Records); err != nil {
		return res, err
	}
	res.Written = true

	logger.Info("exported labels", "count", res.Records, "path", outPath)
	return res, nil
}

// writeCSVFile writes records to path, creating parent directories.
func writeCSVFile(path string, records []Record) error {
	return replaceFile(path, func(w io.Writer) error {
		if err := WriteCSV(w, records); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	})
}

// replaceFile writes to a temporary file next to path and renames it into
// place once write succeeds, so a failed export never leaves a truncated file
// or clobbers an earlier one.
func replaceFile(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
