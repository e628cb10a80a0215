package core

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// errTrailingData marks a line holding more than one JSON value.
var errTrailingData = errors.New("unexpected data after JSON value")

// ParseResult is the outcome of reading one line-delimited JSON source.
type ParseResult struct {
	Records []Record
	Lines   int   // lines read, blank ones included
	Skipped int   // malformed lines dropped
	Bytes   int64 // bytes read after BOM removal
}

// ParseJSONL reads line-delimited JSON from r.
//
// Lines may end in LF, CRLF or a bare CR. Blank lines are ignored. A line
// that is not valid JSON is logged with its 1-based line number and skipped;
// parsing continues with the next line. A valid value that is not an object
// becomes an empty Record, so every valid line yields exactly one Record, in
// input order.
//
// Only read errors from r abort parsing.
func ParseJSONL(r io.Reader, logger *slog.Logger) (ParseResult, error) {
	counter := WrapForParsing(r)
	br := bufio.NewReader(NewLineEndingReader(counter))

	var res ParseResult
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			res.Bytes = counter.BytesRead
			return res, fmt.Errorf("read line %d: %w", res.Lines+1, readErr)
		}

		if len(line) > 0 {
			res.Lines++
			parseLine(&res, line, logger)
		}

		if readErr == io.EOF {
			break
		}
	}

	res.Bytes = counter.BytesRead
	logger.Debug("parsed labels",
		"lines", res.Lines,
		"records", len(res.Records),
		"skipped", res.Skipped,
		"bytes", res.Bytes,
	)
	return res, nil
}

func parseLine(res *ParseResult, line string, logger *slog.Logger) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	value, err := decodeLine(line)
	if err != nil {
		res.Skipped++
		logger.Warn("skipping malformed JSON", "line", res.Lines, "error", err)
		return
	}

	obj, ok := value.(map[string]any)
	if !ok {
		logger.Warn("line is not a JSON object, exporting empty row",
			"line", res.Lines,
			"type", jsonTypeName(value),
		)
		obj = map[string]any{}
	}
	res.Records = append(res.Records, Record(obj))
}

// decodeLine decodes exactly one JSON value. Numbers are kept as json.Number
// so they are exported with their original text.
func decodeLine(line string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errTrailingData
		}
		return nil, err
	}

	return v, nil
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
