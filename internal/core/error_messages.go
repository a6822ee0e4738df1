package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// Engine sentinels are matched first with errors.Is; anything else falls back
// to case-insensitive substring patterns, first match wins.
//
// # Codes
//
//	DB001  duplicate key            DB004  connection refused
//	DB002  unique value exists      DB005  connection reset
//	DB003  referenced record absent DB006  timeout
//	DB007  deadlock                 DB008  storage failure
//
//	VAL001 invalid date             VAL004 missing required column
//	VAL002 invalid number           VAL005 validation failed
//	VAL003 required field empty     VAL006 invalid enum
//
//	FILE001 file too large          FILE004 no file provided
//	FILE002 invalid csv             FILE005 empty file
//	FILE003 encoding error          FILE006 unsupported format
//
//	IMP001 import cancelled         IMP003 invalid import mode
//	IMP002 too many imports         IMP004 hook failed after commit
//
//	REC001 record not found         REC003 unsupported field
//	REC002 unknown record type
//
//	AUTH001 invalid credentials     AUTH002 session expired
//
//	ERR000 anything else. Check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// Order matters: a hook error may wrap a not-found from the hook itself.
var sentinelMessages = []sentinelMessage{
	{ErrHook, UserMessage{"The change was saved but a follow-up step failed", "Contact support with this code", "IMP004"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "IMP001"}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Try a smaller file or try again later", "DB006"}},
	{ErrTooManyImports, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP002"}},
	{ErrDuplicateKey, UserMessage{"A record with this key already exists", "Use update or upsert mode, or change the key", "DB001"}},
	{ErrNotFound, UserMessage{"Record not found", "Refresh the list and try again", "REC001"}},
	{ErrUnknownType, UserMessage{"Unknown record type", "This record type is not configured", "REC002"}},
	{ErrUnsupportedField, UserMessage{"A field has an unsupported type", "This field cannot be edited here", "REC003"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this key already exists", "Review your data for duplicates", "DB001"}},
	{"violates unique", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Create the referenced record first", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD or DD/MM/YYYY", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Remove currency symbols and use a plain decimal", "VAL002"}},
	{"required field", UserMessage{"Required field is empty", "Fill in every required field", "VAL003"}},
	{"missing required column", UserMessage{"Required column is missing from the file", "Check that all required columns are present", "VAL004"}},
	{"invalid enum", UserMessage{"Value is not in the allowed list", "Check the allowed values for this field", "VAL006"}},
	{"invalid import mode", UserMessage{"Unknown import mode", "Use insert, update, upsert or replace", "IMP003"}},

	{"file too large", UserMessage{"File exceeds the maximum size", "Split the file into smaller chunks", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file has consistent columns", "FILE002"}},
	{"encoding error", UserMessage{"File contains invalid characters", "Save the file as UTF-8 or pick its encoding", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a file to import", "FILE004"}},
	{"empty file", UserMessage{"The file is empty", "Please import a file with data rows", "FILE005"}},
	{"unsupported file format", UserMessage{"File format is not supported", "Use .csv or .xlsx", "FILE006"}},

	{"invalid credentials", UserMessage{"Email or password is incorrect", "Check your credentials and try again", "AUTH001"}},
	{"token", UserMessage{"Your session has expired", "Please log in again", "AUTH002"}},
}

var validationMessage = UserMessage{"Some values are invalid", "Correct the highlighted fields", "VAL005"}

var storageMessage = UserMessage{"The database rejected the operation", "Please try again or contact support", "DB008"}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	// Generic fallbacks after the specific patterns had their chance.
	if errors.Is(err, ErrValidation) {
		return validationMessage
	}
	if errors.Is(err, ErrStorage) {
		return storageMessage
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
