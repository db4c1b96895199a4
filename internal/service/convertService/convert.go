// Package convertService drives the page-to-image conversion lifecycle for a
// stored asset: wait for the remote copy to become servable, submit the job,
// poll until a terminal state, all within explicit time budgets.
package convertService

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filestorage-service/internal/assetgw"
	"filestorage-service/pkg/logger"
	"filestorage-service/pkg/poll"

	"go.uber.org/zap"
)

var (
	ErrReadinessTimeout  = errors.New("asset readiness wait timed out")
	ErrNoToken           = errors.New("conversion submit returned no job token")
	ErrConversionFailed  = errors.New("conversion job failed")
	ErrConversionTimeout = errors.New("conversion job timed out")
	ErrNoResultAsset     = errors.New("conversion finished without a result asset")
)

// Thumbnail shape requested from the asset service.
const (
	thumbnailPage   = 1
	thumbnailWidth  = 300
	thumbnailFormat = "jpg"
)

// Config holds the two independent polling budgets. The status budget is
// larger than the readiness one since conversion itself is the slow part.
type Config struct {
	ReadyTimeout   time.Duration `env:"CONVERT_READY_TIMEOUT" env-default:"10s"`
	ReadyInterval  time.Duration `env:"CONVERT_READY_INTERVAL" env-default:"500ms"`
	StatusTimeout  time.Duration `env:"CONVERT_STATUS_TIMEOUT" env-default:"60s"`
	StatusInterval time.Duration `env:"CONVERT_STATUS_INTERVAL" env-default:"2s"`
}

// Service holds no per-call state; converting the same asset twice is safe.
type Service struct {
	gateway assetgw.Gateway
	clock   poll.Clock
	cfg     Config
	log     *logger.Logger
}

func New(gateway assetgw.Gateway, clock poll.Clock, cfg Config, log *logger.Logger) *Service {
	return &Service{
		gateway: gateway,
		clock:   clock,
		cfg:     cfg,
		log:     log,
	}
}

// AwaitReady polls the asset service until the asset is servable or the
// readiness budget is spent. A new remote copy is not immediately consumable
// by the conversion endpoint; converting too early fails spuriously.
func (s *Service) AwaitReady(ctx context.Context, assetID string) error {
	err := poll.Until(ctx, s.clock, s.cfg.ReadyInterval, s.cfg.ReadyTimeout, func(ctx context.Context) (bool, error) {
		return s.gateway.CheckReady(ctx, assetID)
	})
	if errors.Is(err, poll.ErrBudgetExceeded) {
		return ErrReadinessTimeout
	}
	return err
}

// ConvertFirstPage submits a page-1 raster conversion for the asset and polls
// until it finishes, fails, or the status budget runs out. On success it
// returns the id of the generated image asset.
func (s *Service) ConvertFirstPage(ctx context.Context, assetID string) (string, error) {
	token, err := s.gateway.SubmitConversion(ctx, assetgw.ConversionRequest{
		AssetID: assetID,
		Page:    thumbnailPage,
		Format:  thumbnailFormat,
		Width:   thumbnailWidth,
	})
	if err != nil {
		return "", fmt.Errorf("submit conversion: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}

	var resultID string
	err = poll.Until(ctx, s.clock, s.cfg.StatusInterval, s.cfg.StatusTimeout, func(ctx context.Context) (bool, error) {
		state, err := s.gateway.JobStatus(ctx, token)
		if err != nil {
			return false, fmt.Errorf("query job status: %w", err)
		}
		switch state.Status {
		case assetgw.StatusFinished:
			resultID = state.ResultAssetID
			return true, nil
		case assetgw.StatusFailed:
			return false, fmt.Errorf("%w: %s", ErrConversionFailed, state.Detail)
		default:
			return false, nil
		}
	})
	if errors.Is(err, poll.ErrBudgetExceeded) {
		return "", ErrConversionTimeout
	}
	if err != nil {
		return "", err
	}
	if resultID == "" {
		return "", ErrNoResultAsset
	}
	return resultID, nil
}

// GenerateThumbnail runs the full pipeline: readiness wait first, then the
// conversion job. The readiness gate is best-effort; its timeout is logged
// and conversion is attempted anyway. The wait always completes, one way or
// the other, before the job is submitted.
func (s *Service) GenerateThumbnail(ctx context.Context, assetID string) (string, error) {
	if err := s.AwaitReady(ctx, assetID); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.log.Warn("asset readiness wait failed, attempting conversion anyway",
			zap.String("asset_id", assetID), zap.Error(err))
	}
	return s.ConvertFirstPage(ctx, assetID)
}
