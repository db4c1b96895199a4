package shareService

import "errors"

// Expected, user-facing outcomes of the share gates. Handlers map these to
// HTTP statuses without leaking internals; anything else is a 500.
var (
	ErrNotFound           = errors.New("share link not found")
	ErrExpired            = errors.New("share link has expired")
	ErrQuotaExceeded      = errors.New("download limit exceeded")
	ErrPasswordRequired   = errors.New("password required")
	ErrPasswordIncorrect  = errors.New("incorrect password")
	ErrNotProtected       = errors.New("share link is not password protected")
	ErrDownloadNotAllowed = errors.New("download is not allowed for this share link")
	ErrTooManyAttempts    = errors.New("too many password attempts")

	// ErrFileNotFound covers both a missing file and a file the caller does
	// not own, so existence is not leaked.
	ErrFileNotFound = errors.New("file not found")
)
