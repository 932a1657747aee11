/*
Package errs provides custom error types and application-level error code constants.

These codes identify request, chat, and identity failures both in HTTP responses and in
socket_error frames pushed to WebSocket clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Chat and Presence Errors
const (
	// ErrGuestIDMissing indicates a guest registration without a guest identifier.
	ErrGuestIDMissing = 2101

	// ErrGuestIDInvalid indicates a guest identifier that is not well formed.
	ErrGuestIDInvalid = 2102

	// ErrGuestRegistrationFailed indicates the guest presence could not be recorded.
	ErrGuestRegistrationFailed = 2103

	// ErrIdentityMissing indicates a connection that carries neither a user nor a guest identity.
	ErrIdentityMissing = 2104

	// ErrGuestNotFound indicates that the requested guest does not exist.
	ErrGuestNotFound = 2105

	// ErrAdminNotProvisioned indicates that no admin account exists.
	ErrAdminNotProvisioned = 2106

	// ErrMessageEmpty indicates a chat message without content.
	ErrMessageEmpty = 2201

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrUnsupportedEvent indicates that the client sent an unknown event name.
	ErrUnsupportedEvent = 2203

	// ErrTranscriptExportDisabled indicates that transcript archiving is not configured.
	ErrTranscriptExportDisabled = 2301
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the PoW proof provided by the client is invalid.
	ErrPowChallengeInvalid = 3002

	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = 3101

	// ErrForbidden indicates a valid session without the admin role.
	ErrForbidden = 3102
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates the persistent store could not serve the request.
	ErrStoreUnavailable = 5001

	// ErrFileStorageFailed indicates the object storage rejected an operation.
	ErrFileStorageFailed = 5002
)
