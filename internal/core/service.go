package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/labelexport/internal/config"
)

// ErrMissingLabeler is returned when a labeler-scoped operation gets an empty id.
var ErrMissingLabeler = errors.New("missing labeler_id")

// LabelSource loads stored label records. The Postgres store implements it.
type LabelSource interface {
	LabelsByLabeler(ctx context.Context, labelerID string) ([]Record, error)
}

// Service is the entry point for label exports served over HTTP.
type Service struct {
	source  LabelSource
	timeout time.Duration
}

// NewService creates a Service reading stored labels from source.
func NewService(source LabelSource, cfg *config.Config) (*Service, error) {
	if source == nil {
		return nil, errors.New("label source is required")
	}
	return &Service{
		source:  source,
		timeout: cfg.Export.Timeout,
	}, nil
}

// LabelerRecords returns every stored record of one labeler, oldest first.
// Returns ErrNoLabels when the labeler has none.
func (s *Service) LabelerRecords(ctx context.Context, labelerID string) ([]Record, error) {
	labelerID = strings.TrimSpace(labelerID)
	if labelerID == "" {
		return nil, ErrMissingLabeler
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.source.LabelsByLabeler(ctx, labelerID)
	if err != nil {
		return nil, fmt.Errorf("load labels for %s: %w", labelerID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("labeler %s: %w", labelerID, ErrNoLabels)
	}
	return records, nil
}

// PreviewLabeler returns the flattened rows of one labeler.
func (s *Service) PreviewLabeler(ctx context.Context, labelerID string) ([]Row, error) {
	records, err := s.LabelerRecords(ctx, labelerID)
	if err != nil {
		return nil, err
	}
	return FlattenAll(records), nil
}

// ParseLabels reads a line-delimited JSON upload.
// Returns ErrNoLabels, together with the counts, when no line held a valid record.
func (s *Service) ParseLabels(ctx context.Context, r io.Reader, logger *slog.Logger) (ParseResult, error) {
	res, err := ParseJSONL(r, logger)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(res.Records) == 0 {
		return res, ErrNoLabels
	}
	return res, nil
}
