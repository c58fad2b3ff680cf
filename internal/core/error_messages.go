package core

// error_messages.go turns errors into messages a client can act on.
//
// Every message carries a short code that support can look up:
//
//	DATA001  No dataset loaded           Upload a CSV with POST /upload
//	DATA002  Column not found            Check GET /columns for valid names
//	DATA003  Column is not numeric       Pick a numeric column
//	FILE001  CSV too large               Upload fewer rows
//	FILE002  CSV could not be parsed     Fix the file and upload again
//	AUTH001  Upload key missing/invalid  Send the X-Upload-Key header
//	UPL001   Ingest slots exhausted      Retry shortly
//	UPL002   Request cancelled           Retry
//	UPL003   Request timed out           Retry with a smaller file
//	HIST001  History store unreachable   Retry later
//	RATE001  Rate limited                Slow down
//	ERR000   Anything else               Check server logs
//
// Typed dataset errors keep their own message, which is already worded for the
// client. Untyped errors are matched by substring and never echoed back.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ministats/internal/dataset"
)

// UserMessage is the client-facing rendering of an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

// kindMessages holds the action and code for every typed error kind. The
// message itself comes from the error.
var kindMessages = map[dataset.Kind]UserMessage{
	dataset.KindNotLoaded:       {Action: "Upload a CSV with POST /upload", Code: "DATA001"},
	dataset.KindNotFound:        {Action: "Check GET /columns for valid column names", Code: "DATA002"},
	dataset.KindUnsupportedType: {Action: "Choose a numeric column", Code: "DATA003"},
	dataset.KindPayloadTooLarge: {Action: "Upload a file with fewer rows", Code: "FILE001"},
	dataset.KindBadInput:        {Action: "Fix the request and try again", Code: "FILE002"},
	dataset.KindUnauthorized:    {Action: "Send a valid X-Upload-Key header", Code: "AUTH001"},
	dataset.KindBusy:            {Action: "Please wait a moment and try again", Code: "UPL001"},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers untyped errors, first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Upload history is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "HIST001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a UserMessage. A nil error maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var de *dataset.Error
	if errors.As(err, &de) {
		if msg, ok := kindMessages[de.Kind]; ok {
			msg.Message = de.Message
			if msg.Message == "" {
				msg.Message = de.Error()
			}
			return msg
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
