/*
Package errs provides custom error types and application-level error code constants.

This file maps error codes to their user-facing message and HTTP status.
*/
package errs

import "net/http"

var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx
	ErrGuestIDMissing:           {Code: ErrGuestIDMissing, Message: "Guest ID is required.", Status: http.StatusBadRequest},
	ErrGuestIDInvalid:           {Code: ErrGuestIDInvalid, Message: "Guest ID is invalid.", Status: http.StatusBadRequest},
	ErrGuestRegistrationFailed:  {Code: ErrGuestRegistrationFailed, Message: "Could not register the chat session: %s"},
	ErrIdentityMissing:          {Code: ErrIdentityMissing, Message: "Connection carries no user or guest identity."},
	ErrGuestNotFound:            {Code: ErrGuestNotFound, Message: "Guest not found.", Status: http.StatusNotFound},
	ErrAdminNotProvisioned:      {Code: ErrAdminNotProvisioned, Message: "Support chat is not available.", Status: http.StatusNotFound},
	ErrMessageEmpty:             {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrMessageContentTooLong:    {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},
	ErrUnsupportedEvent:         {Code: ErrUnsupportedEvent, Message: "Unsupported event: %s"},
	ErrTranscriptExportDisabled: {Code: ErrTranscriptExportDisabled, Message: "Transcript export is not configured.", Status: http.StatusNotImplemented},

	// 3xxx
	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Message: "Verification required. Please try again.", Status: http.StatusForbidden},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Message: "Verification failed. Please try again.", Status: http.StatusForbidden},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrForbidden:            {Code: ErrForbidden, Message: "Admin access required.", Status: http.StatusForbidden},

	// 5xxx
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable:  {Code: ErrStoreUnavailable, Message: "Service temporarily unavailable.", Status: http.StatusServiceUnavailable},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File storage failed. Please try again.", Status: http.StatusBadGateway},
}
