// Package assetgw talks to the external asset service that hosts uploaded
// files, serves on-the-fly previews and runs page-to-image conversion jobs.
package assetgw

import (
	"context"
	"io"
)

// Job status values reported by the asset service.
const (
	StatusPending  = "pending"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// ConversionRequest describes a page-to-raster-image conversion job.
type ConversionRequest struct {
	AssetID string `json:"asset_id"`
	Page    int    `json:"page"`
	Format  string `json:"format"`
	Width   int    `json:"width"`
}

// JobState is the normalized view of a conversion job's status payload.
// ResultAssetID is empty until the job finishes, and may stay empty if the
// finished payload carried no extractable asset.
type JobState struct {
	Status        string
	Detail        string
	ResultAssetID string
}

type Gateway interface {
	Upload(ctx context.Context, name, contentType string, data io.Reader, size int64) (string, error)
	Delete(ctx context.Context, assetID string) error
	CheckReady(ctx context.Context, assetID string) (bool, error)
	SubmitConversion(ctx context.Context, req ConversionRequest) (string, error)
	JobStatus(ctx context.Context, token string) (*JobState, error)
	ContentURL(assetID string) string
	PreviewURL(assetID string) string
}
