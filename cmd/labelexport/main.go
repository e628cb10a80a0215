// Command labelexport converts a JSONL label file from the labeling interface to CSV.
//
// Usage:
//
//	labelexport <input_jsonl> <output_csv>
//
// Diagnostics go to stderr. LOG_LEVEL and LOG_FORMAT control their verbosity and shape.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/labelexport/internal/config"
	"github.com/JonMunkholm/labelexport/internal/core"
	"github.com/JonMunkholm/labelexport/internal/logging"
)

const usage = `Usage: labelexport <input_jsonl> <output_csv>

Example:
  labelexport labels/labeler_1.jsonl labels/labeler_1.csv
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one export and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprint(stderr, usage)
		return 1
	}
	inPath, outPath := args[0], args[1]

	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	// Only logging settings apply here; a bad value is reported but never fatal.
	lc, cfgErr := config.LoadLogging(os.Getenv)
	logger := logging.New(stderr, lc.Level, lc.Format)
	if cfgErr != nil {
		logger.Warn("using default logging settings", "error", cfgErr)
	}

	res, err := core.ExportFile(ctx, inPath, outPath, logger)
	if err != nil {
		if errors.Is(err, core.ErrInputNotFound) {
			logger.Error("input file not found", "path", inPath)
		} else {
			logger.Error(core.FormatUserError(err),
				"error", err,
				"run_id", res.RunID,
			)
		}
		return 1
	}

	logger.Info("done",
		slog.Int("records", res.Records),
		slog.Int("skipped", res.Skipped),
		slog.Bool("written", res.Written),
	)
	return 0
}
