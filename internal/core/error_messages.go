package core

// Technical errors are mapped to user-facing messages carrying a code that can
// be quoted to support.
//
//	FILE001  input file not found
//	FILE002  upload over the size limit
//	FILE003  input path is a directory
//	LBL001   nothing to export
//	REQ001   missing labeler id
//	REQ002   request cancelled
//	REQ003   request timed out
//	DB001    labels table missing
//	DB004    connection refused
//	DB005    connection reset
//	DB006    database timeout
//	ERR000   anything else
//
// Typed errors are matched with errors.Is/As. Message substrings are the
// fallback for errors that only arrive as text, such as driver dial failures.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// UserMessage is the user-facing form of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorRule struct {
	match func(error) bool
	msg   UserMessage
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func hasText(substrs ...string) func(error) bool {
	return func(err error) bool {
		s := strings.ToLower(err.Error())
		for _, sub := range substrs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func either(a, b func(error) bool) func(error) bool {
	return func(err error) bool { return a(err) || b(err) }
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func missingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

// errorRules is checked in order; the first match wins.
var errorRules = []errorRule{
	{isErr(ErrInputNotFound), UserMessage{
		Message: "Input file was not found",
		Action:  "Check the path to the JSONL label file",
		Code:    "FILE001",
	}},
	{either(tooLarge, hasText("request body too large")), UserMessage{
		Message: "Upload exceeds the maximum size limit",
		Action:  "Split the label file into smaller chunks",
		Code:    "FILE002",
	}},
	{hasText("is a directory"), UserMessage{
		Message: "Input path is a directory",
		Action:  "Pass the path of a JSONL file",
		Code:    "FILE003",
	}},
	{isErr(ErrNoLabels), UserMessage{
		Message: "No labels to export",
		Action:  "Check that the input holds one JSON object per line",
		Code:    "LBL001",
	}},
	{isErr(ErrMissingLabeler), UserMessage{
		Message: "Missing labeler_id parameter",
		Action:  "Provide a labeler_id query parameter",
		Code:    "REQ001",
	}},
	{isErr(context.Canceled), UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ002",
	}},
	{isErr(context.DeadlineExceeded), UserMessage{
		Message: "Request timed out",
		Action:  "Try again later or export a smaller labeler set",
		Code:    "REQ003",
	}},
	{either(missingTable, hasText("does not exist")), UserMessage{
		Message: "The labels table is missing",
		Action:  "Run the database setup before exporting",
		Code:    "DB001",
	}},
	{hasText("connection refused"), UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{hasText("connection reset"), UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{hasText("timeout"), UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB006",
	}},
}

var unknownError = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a UserMessage.
// A nil error maps to the zero UserMessage.
//
//	msg := MapError(fmt.Errorf("labeler 7: %w", ErrNoLabels))
//	// msg.Code == "LBL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, rule := range errorRules {
		if rule.match(err) {
			return rule.msg
		}
	}
	return unknownError
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
