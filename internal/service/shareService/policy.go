package shareService

import (
	"time"

	"filestorage-service/internal/model/shareInfo"

	"golang.org/x/crypto/bcrypt"
)

// Access is the outcome of evaluating a link's gates. When RequiresPassword
// is set the caller only gets metadata, never a content URL.
type Access struct {
	Link             *shareInfo.ShareLink
	RequiresPassword bool
}

// Evaluate runs the four gates in order: active, expiry, quota, password.
// The first failing gate wins. A password-protected link with no password
// supplied yields a reduced Access rather than an error, so the public
// endpoint can tell the caller a password is needed.
//
// Every public read, password verification and download goes through here.
func Evaluate(link *shareInfo.ShareLink, password *string) (*Access, error) {
	if link == nil || !link.IsActive {
		return nil, ErrNotFound
	}
	if link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt) {
		return nil, ErrExpired
	}
	if link.MaxDownloads != nil && link.DownloadCount >= *link.MaxDownloads {
		return nil, ErrQuotaExceeded
	}
	if link.PasswordHash != nil {
		if password == nil {
			return &Access{Link: link, RequiresPassword: true}, nil
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(*password)) != nil {
			return nil, ErrPasswordIncorrect
		}
	}
	return &Access{Link: link}, nil
}
