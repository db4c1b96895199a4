package shareService

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"filestorage-service/internal/model/fileInfo"
	"filestorage-service/internal/model/shareInfo"
	"filestorage-service/internal/repository/shareRepo"
	"filestorage-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// contentURLTTL bounds how long a handed-out content URL stays valid.
	contentURLTTL = time.Hour
	// maxPasswordAttempts is the per-token failure ceiling within the
	// limiter's window.
	maxPasswordAttempts = 10
)

type LinkRepo interface {
	Create(ctx context.Context, link *shareInfo.ShareLink) error
	GetActiveByToken(ctx context.Context, token string) (*shareInfo.ShareLink, error)
	GetActiveByFileAndOwner(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*shareInfo.ShareLink, error)
	GetActiveByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID uint32) (*shareInfo.ShareLink, error)
	Update(ctx context.Context, link *shareInfo.ShareLink) error
	Revoke(ctx context.Context, id uuid.UUID, ownerID uint32) (bool, error)
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) (int, bool, error)
}

type FileRepo interface {
	GetFileByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error)
	GetOwnedFile(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*fileInfo.File, error)
}

type BlobStore interface {
	PresignedURL(ctx context.Context, key, filename string, inline bool, expiry time.Duration) (string, error)
}

type AttemptLimiter interface {
	RecordFailure(ctx context.Context, token string) (int64, error)
	TooMany(ctx context.Context, token string, limit int64) (bool, error)
	Reset(ctx context.Context, token string) error
}

type ShareService struct {
	shareRepo LinkRepo
	fileRepo  FileRepo
	blob      BlobStore
	attempts  AttemptLimiter // nil disables throttling
	log       *logger.Logger
}

func New(shareRepo LinkRepo, fileRepo FileRepo, blob BlobStore, attempts AttemptLimiter, log *logger.Logger) *ShareService {
	return &ShareService{
		shareRepo: shareRepo,
		fileRepo:  fileRepo,
		blob:      blob,
		attempts:  attempts,
		log:       log,
	}
}

// LinkDefaults are the initial settings for a freshly minted link.
type LinkDefaults struct {
	CanView      bool
	CanDownload  bool
	Password     *string
	ExpiresAt    *time.Time
	MaxDownloads *int
}

// LinkPatch is a partial update: nil pointers (with their Set flags unset)
// keep the previous value. RemovePassword wins over a supplied password.
type LinkPatch struct {
	CanView         *bool
	CanDownload     *bool
	Password        *string
	RemovePassword  bool
	ExpiresAt       *time.Time
	ExpiresAtSet    bool
	MaxDownloads    *int
	MaxDownloadsSet bool
}

// GetOrCreate returns the existing active link for (fileID, ownerID)
// untouched, or mints a new one. The second return value reports whether a
// link was created. A creation racing another request resolves to the single
// surviving row via the storage-level uniqueness constraint.
func (s *ShareService) GetOrCreate(ctx context.Context, fileID uuid.UUID, ownerID uint32, defaults LinkDefaults) (*shareInfo.ShareLink, bool, error) {
	existing, err := s.shareRepo.GetActiveByFileAndOwner(ctx, fileID, ownerID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup existing share link: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	file, err := s.fileRepo.GetOwnedFile(ctx, fileID, ownerID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup file: %w", err)
	}
	if file == nil {
		return nil, false, ErrFileNotFound
	}

	token, err := newShareToken()
	if err != nil {
		return nil, false, fmt.Errorf("generate share token: %w", err)
	}

	var passwordHash *string
	if defaults.Password != nil && *defaults.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(*defaults.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, false, fmt.Errorf("hash share password: %w", err)
		}
		hs := string(h)
		passwordHash = &hs
	}

	now := time.Now()
	link := &shareInfo.ShareLink{
		ID:           uuid.New(),
		FileID:       fileID,
		OwnerID:      ownerID,
		ShareToken:   token,
		CanView:      defaults.CanView,
		CanDownload:  defaults.CanDownload,
		PasswordHash: passwordHash,
		ExpiresAt:    defaults.ExpiresAt,
		MaxDownloads: defaults.MaxDownloads,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.shareRepo.Create(ctx, link); err != nil {
		if errors.Is(err, shareRepo.ErrDuplicateActiveLink) {
			// lost the creation race; hand back the winner
			winner, lookupErr := s.shareRepo.GetActiveByFileAndOwner(ctx, fileID, ownerID)
			if lookupErr != nil || winner == nil {
				return nil, false, fmt.Errorf("resolve concurrent share creation: %w", err)
			}
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("create share link: %w", err)
	}

	s.log.Info("share link created",
		zap.String("share_id", link.ID.String()), zap.String("file_id", fileID.String()))
	return link, true, nil
}

// Update applies a partial patch to an active link owned by ownerID.
func (s *ShareService) Update(ctx context.Context, shareID uuid.UUID, ownerID uint32, patch LinkPatch) (*shareInfo.ShareLink, error) {
	link, err := s.shareRepo.GetActiveByIDAndOwner(ctx, shareID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("lookup share link: %w", err)
	}
	if link == nil {
		return nil, ErrNotFound
	}

	if patch.CanView != nil {
		link.CanView = *patch.CanView
	}
	if patch.CanDownload != nil {
		link.CanDownload = *patch.CanDownload
	}
	if patch.RemovePassword {
		link.PasswordHash = nil
	} else if patch.Password != nil && *patch.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash share password: %w", err)
		}
		hs := string(h)
		link.PasswordHash = &hs
	}
	if patch.ExpiresAtSet {
		link.ExpiresAt = patch.ExpiresAt
	}
	if patch.MaxDownloadsSet {
		link.MaxDownloads = patch.MaxDownloads
	}
	link.UpdatedAt = time.Now()

	if err := s.shareRepo.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update share link: %w", err)
	}
	return link, nil
}

// Revoke flips the link inactive. Missing, foreign and already-revoked links
// all report ErrNotFound so nothing about their existence leaks.
func (s *ShareService) Revoke(ctx context.Context, shareID uuid.UUID, ownerID uint32) error {
	ok, err := s.shareRepo.Revoke(ctx, shareID, ownerID)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	s.log.Info("share link revoked", zap.String("share_id", shareID.String()))
	return nil
}

// SharedFileView is what a public caller may see for a token, already
// filtered by the policy evaluator.
type SharedFileView struct {
	Access     *Access
	File       *fileInfo.File
	ContentURL string // empty while the password gate is pending or viewing is off
}

// Resolve evaluates the gates for a public read of the token.
func (s *ShareService) Resolve(ctx context.Context, token string, password *string) (*SharedFileView, error) {
	link, err := s.shareRepo.GetActiveByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup share link: %w", err)
	}
	access, err := Evaluate(link, password)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, access)
}

// VerifyPassword checks a supplied password against a protected link,
// throttled per token. On success the full view is returned and the failure
// counter is cleared.
func (s *ShareService) VerifyPassword(ctx context.Context, token, password string) (*SharedFileView, error) {
	if s.attempts != nil {
		over, err := s.attempts.TooMany(ctx, token, maxPasswordAttempts)
		if err != nil {
			s.log.Warn("password attempt check failed", zap.Error(err))
		} else if over {
			return nil, ErrTooManyAttempts
		}
	}

	link, err := s.shareRepo.GetActiveByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup share link: %w", err)
	}
	if link != nil && !link.HasPassword() {
		return nil, ErrNotProtected
	}

	access, err := Evaluate(link, &password)
	if errors.Is(err, ErrPasswordIncorrect) && s.attempts != nil {
		if _, recErr := s.attempts.RecordFailure(ctx, token); recErr != nil {
			s.log.Warn("recording password failure failed", zap.Error(recErr))
		}
	}
	if err != nil {
		return nil, err
	}
	if s.attempts != nil {
		_ = s.attempts.Reset(ctx, token)
	}
	return s.buildView(ctx, access)
}

// RecordDownload evaluates every gate, enforces the download permission and
// spends one unit of quota atomically before handing out the content URL.
func (s *ShareService) RecordDownload(ctx context.Context, token string, password *string) (string, error) {
	link, err := s.shareRepo.GetActiveByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("lookup share link: %w", err)
	}
	access, err := Evaluate(link, password)
	if err != nil {
		return "", err
	}
	if access.RequiresPassword {
		return "", ErrPasswordRequired
	}
	if !link.CanDownload {
		return "", ErrDownloadNotAllowed
	}

	// Resolve and presign before spending quota so a missing or trashed
	// file never burns a download.
	file, err := s.fileRepo.GetFileByID(ctx, link.FileID)
	if err != nil {
		return "", fmt.Errorf("lookup shared file: %w", err)
	}
	if file == nil || file.IsDeleted {
		return "", ErrNotFound
	}

	url, err := s.blob.PresignedURL(ctx, file.StorageKey, file.Name, false, contentURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}

	count, ok, err := s.shareRepo.IncrementDownloadCount(ctx, link.ID)
	if err != nil {
		return "", fmt.Errorf("increment download count: %w", err)
	}
	if !ok {
		return "", ErrQuotaExceeded
	}

	s.log.Info("file downloaded via share",
		zap.String("share_id", link.ID.String()), zap.Int("download_count", count))
	return url, nil
}

func (s *ShareService) buildView(ctx context.Context, access *Access) (*SharedFileView, error) {
	file, err := s.fileRepo.GetFileByID(ctx, access.Link.FileID)
	if err != nil {
		return nil, fmt.Errorf("lookup shared file: %w", err)
	}
	if file == nil || file.IsDeleted {
		return nil, ErrNotFound
	}

	view := &SharedFileView{Access: access, File: file}
	if !access.RequiresPassword && access.Link.CanView {
		url, err := s.blob.PresignedURL(ctx, file.StorageKey, file.Name, true, contentURLTTL)
		if err != nil {
			return nil, fmt.Errorf("presign view: %w", err)
		}
		view.ContentURL = url
	}
	return view, nil
}

// newShareToken mints 16 bytes of entropy encoded as hex, matching the
// unguessability requirement for public tokens.
func newShareToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
