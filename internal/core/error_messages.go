package core

// error_messages.go maps errors to short user-facing messages with support
// codes. Sentinel errors are matched first with errors.Is; anything else
// falls through to case-insensitive substring patterns, then to ERR000.
//
// # Format errors (FMT)
//
//	FMT001 - Unsupported format          sheet.ErrUnsupportedFormat
//	FMT002 - Old .xls workbook           sheet.ErrLegacyXLS
//
// # File errors (FILE, XLSX)
//
//	FILE001 - File too large              ErrFileTooLarge
//	FILE002 - File could not be read      sheet.ErrDecodeFailure, "invalid csv"
//	FILE004 - No file selected            ErrNoFile
//	XLSX001 - Workbook has no sheets      sheet.ErrNoSheetsFound
//
// # Table errors (EXP, CELL)
//
//	EXP001  - Nothing to export           sheet.ErrEmptyExport
//	CELL001 - Cell outside the table      sheet.ErrCellOutOfRange
//
// # Session and load errors (SES, LOAD, REQ)
//
//	SES001  - Session not found           ErrSessionNotFound
//	SES002  - Too many sessions           ErrTooManySessions
//	LOAD001 - Server busy                 ErrTooManyLoads
//	REQ001  - Request cancelled           context.Canceled
//	REQ002  - Request timed out           context.DeadlineExceeded, "timeout"
//	REQ003  - Malformed request           BadRequestMessage
//
// # Rate limiting
//
//	RATE001 - Too many requests           "rate limit"
//
// ERR000 is the fallback. Check the server log for the original error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

// UserMessage is what the client is shown for an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

// BadRequestMessage is sent for edit requests that cannot be decoded.
var BadRequestMessage = UserMessage{
	Message: "Invalid edit request",
	Action:  "Send JSON with row, col and value",
	Code:    "REQ003",
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order. ErrLegacyXLS wraps
// ErrUnsupportedFormat, so it must come first.
var sentinelMessages = []sentinelMessage{
	{sheet.ErrLegacyXLS, UserMessage{
		Message: "Old .xls not supported, save as .xlsx or .csv",
		Action:  "Re-save the workbook as .xlsx or .csv and load it again",
		Code:    "FMT002",
	}},
	{sheet.ErrUnsupportedFormat, UserMessage{
		Message: "Unsupported format",
		Action:  "Choose a .csv or .xlsx file",
		Code:    "FMT001",
	}},
	{sheet.ErrNoSheetsFound, UserMessage{
		Message: "No sheets found",
		Action:  "Check that the workbook contains at least one worksheet",
		Code:    "XLSX001",
	}},
	{sheet.ErrDecodeFailure, UserMessage{
		Message: "Error loading file",
		Action:  "Check that the file is not damaged and try again",
		Code:    "FILE002",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller parts",
		Code:    "FILE001",
	}},
	{ErrNoFile, UserMessage{
		Message: "No file was selected",
		Action:  "Choose a .csv or .xlsx file to load",
		Code:    "FILE004",
	}},
	{sheet.ErrEmptyExport, UserMessage{
		Message: "No data to export",
		Action:  "Load a file first",
		Code:    "EXP001",
	}},
	{sheet.ErrCellOutOfRange, UserMessage{
		Message: "That cell is outside the table",
		Action:  "Reload the table and try the edit again",
		Code:    "CELL001",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "Session not found",
		Action:  "The session may have expired. Open the viewer again",
		Code:    "SES001",
	}},
	{ErrTooManySessions, UserMessage{
		Message: "Too many open sessions",
		Action:  "Please try again later",
		Code:    "SES002",
	}},
	{ErrTooManyLoads, UserMessage{
		Message: "The server is busy reading other files",
		Action:  "Please wait a moment and try again",
		Code:    "LOAD001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "REQ002",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors from libraries that do not wrap our sentinels.
// The first match wins.
var errorPatterns = []errorPattern{
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{"request body too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller parts",
		Code:    "FILE001",
	}},
	{"invalid csv", UserMessage{
		Message: "Error loading file",
		Action:  "Check that the file is comma-separated text",
		Code:    "FILE002",
	}},
	{"timeout", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "REQ002",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a UserMessage. A nil error gives the zero value.
//
//	msg := MapError(fmt.Errorf("load: %w", sheet.ErrNoSheetsFound))
//	// msg.Code == "XLSX001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
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

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
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

// UserError pairs a technical error with the message shown for it.
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

// NewUserError maps err once and keeps both forms. Returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
