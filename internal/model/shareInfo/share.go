package shareInfo

import (
	"time"

	"github.com/google/uuid"
)

// ShareLink is a public, token-addressed grant to a single file. At most one
// active link exists per (FileID, OwnerID); revocation flips IsActive instead
// of deleting the row.
type ShareLink struct {
	ID            uuid.UUID  `json:"id"`
	FileID        uuid.UUID  `json:"file_id"`
	OwnerID       uint32     `json:"owner_id"`
	ShareToken    string     `json:"share_token"`
	CanView       bool       `json:"can_view"`
	CanDownload   bool       `json:"can_download"`
	PasswordHash  *string    `json:"-"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxDownloads  *int       `json:"max_downloads,omitempty"`
	DownloadCount int        `json:"download_count"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (l *ShareLink) HasPassword() bool {
	return l.PasswordHash != nil
}
