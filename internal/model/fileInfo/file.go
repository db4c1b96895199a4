package fileInfo

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	ID               uuid.UUID  `json:"id"`
	OwnerID          uint32     `json:"owner_id"`
	Name             string     `json:"name"`
	RemoteAssetID    string     `json:"-"`
	StorageKey       string     `json:"-"`
	Format           string     `json:"format"`
	Size             int64      `json:"size"`
	ThumbnailAssetID *string    `json:"-"`
	ThumbnailURL     *string    `json:"thumbnail_url,omitempty"`
	IsDeleted        bool       `json:"-"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasThumbnail reports whether the conversion pipeline (or its fallback)
// already produced a thumbnail. The asset id and URL are set as a pair.
func (f *File) HasThumbnail() bool {
	return f.ThumbnailAssetID != nil && f.ThumbnailURL != nil
}
