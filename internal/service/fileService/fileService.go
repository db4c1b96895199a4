// Package fileService implements the file lifecycle: upload to both stores,
// listing, rename, trash, restore, purge and thumbnail generation for pdfs.
package fileService

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"filestorage-service/internal/assetgw"
	"filestorage-service/internal/model/fileInfo"
	"filestorage-service/internal/repository/fileRepo"
	"filestorage-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const presignTTL = time.Hour

// formatByMIME maps accepted upload content types to the stored format tag.
var formatByMIME = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "image",
	"image/png":       "image",
	"image/gif":       "image",
	"image/webp":      "image",
	"video/mp4":       "video",
	"video/webm":      "video",
	"video/quicktime": "video",
	"audio/mpeg":      "audio",
	"audio/wav":       "audio",
	"audio/ogg":       "audio",
	"text/plain":      "text",
	"application/msword": "document",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "document",
	"application/vnd.ms-excel": "document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "document",
	"application/vnd.ms-powerpoint":                                           "document",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "document",
}

type FileRepo interface {
	CreateFile(ctx context.Context, file *fileInfo.File) error
	GetFileByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error)
	GetOwnedFile(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*fileInfo.File, error)
	ListFiles(ctx context.Context, ownerID uint32, filter fileRepo.ListFilter) ([]*fileInfo.File, int, error)
	ListTrash(ctx context.Context, ownerID uint32, page, limit int) ([]*fileInfo.File, int, error)
	RenameFile(ctx context.Context, fileID uuid.UUID, newName string) error
	SoftDeleteFile(ctx context.Context, fileID uuid.UUID, deletedAt time.Time) error
	RestoreFile(ctx context.Context, fileID uuid.UUID) error
	HardDeleteFile(ctx context.Context, fileID uuid.UUID) error
	SetThumbnail(ctx context.Context, fileID uuid.UUID, assetID, url string) error
}

type BlobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key, filename string, inline bool, expiry time.Duration) (string, error)
}

// Converter turns a remote pdf asset into an image asset.
type Converter interface {
	GenerateThumbnail(ctx context.Context, assetID string) (string, error)
}

type FileService struct {
	fileRepo  FileRepo
	blob      BlobStore
	gateway   assetgw.Gateway
	converter Converter
	log       *logger.Logger
}

func New(fileRepo FileRepo, blob BlobStore, gateway assetgw.Gateway, converter Converter, log *logger.Logger) *FileService {
	return &FileService{
		fileRepo:  fileRepo,
		blob:      blob,
		gateway:   gateway,
		converter: converter,
		log:       log,
	}
}

// UploadFile stores the bytes in the blob store and the asset service, then
// records the file. For pdfs a thumbnail is generated best-effort; no
// thumbnail failure ever fails the upload.
func (s *FileService) UploadFile(ctx context.Context, ownerID uint32, name, contentType string, data []byte) (*fileInfo.File, error) {
	format, ok := formatByMIME[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	fileID := uuid.New()
	storageKey := fileID.String()

	if err := s.blob.Upload(ctx, storageKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("store file bytes: %w", err)
	}

	assetID, err := s.gateway.Upload(ctx, name, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.cleanupBlob(ctx, storageKey)
		return nil, fmt.Errorf("upload to asset service: %w", err)
	}

	now := time.Now()
	file := &fileInfo.File{
		ID:            fileID,
		OwnerID:       ownerID,
		Name:          name,
		RemoteAssetID: assetID,
		StorageKey:    storageKey,
		Format:        format,
		Size:          int64(len(data)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.fileRepo.CreateFile(ctx, file); err != nil {
		s.cleanupBlob(ctx, storageKey)
		s.cleanupAsset(ctx, assetID)
		return nil, fmt.Errorf("record file: %w", err)
	}

	if format == "pdf" {
		if err := s.ensureThumbnail(ctx, file); err != nil {
			s.log.Warn("thumbnail generation failed",
				zap.String("file_id", fileID.String()), zap.Error(err))
		}
	}
	return file, nil
}

// ensureThumbnail runs the conversion pipeline and persists the result. When
// conversion fails, the original asset's on-the-fly preview URL is persisted
// instead so the file always has a renderable thumbnail. The error return
// covers only the persistence of that fallback.
func (s *FileService) ensureThumbnail(ctx context.Context, file *fileInfo.File) error {
	thumbAssetID, err := s.converter.GenerateThumbnail(ctx, file.RemoteAssetID)
	if err != nil {
		s.log.Warn("pdf conversion failed, falling back to preview url",
			zap.String("file_id", file.ID.String()), zap.Error(err))
		thumbAssetID = file.RemoteAssetID
	}

	var url string
	if thumbAssetID == file.RemoteAssetID {
		url = s.gateway.PreviewURL(thumbAssetID)
	} else {
		url = s.gateway.ContentURL(thumbAssetID)
	}
	if err := s.fileRepo.SetThumbnail(ctx, file.ID, thumbAssetID, url); err != nil {
		return fmt.Errorf("persist thumbnail: %w", err)
	}
	file.ThumbnailAssetID = &thumbAssetID
	file.ThumbnailURL = &url
	return nil
}

// PdfThumbnail returns the thumbnail URL for an owned pdf, generating it on
// demand if the upload-time attempt left nothing behind.
func (s *FileService) PdfThumbnail(ctx context.Context, fileID uuid.UUID, ownerID uint32) (string, error) {
	file, err := s.fileRepo.GetOwnedFile(ctx, fileID, ownerID)
	if err != nil {
		return "", fmt.Errorf("lookup file: %w", err)
	}
	if file == nil {
		return "", ErrNotFound
	}
	if file.Format != "pdf" {
		return "", ErrNotPDF
	}
	if file.HasThumbnail() {
		return *file.ThumbnailURL, nil
	}
	if err := s.ensureThumbnail(ctx, file); err != nil {
		return "", err
	}
	return *file.ThumbnailURL, nil
}

func (s *FileService) ListFiles(ctx context.Context, ownerID uint32, filter fileRepo.ListFilter) ([]*fileInfo.File, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.fileRepo.ListFiles(ctx, ownerID, filter)
}

func (s *FileService) ListTrash(ctx context.Context, ownerID uint32, page, limit int) ([]*fileInfo.File, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.fileRepo.ListTrash(ctx, ownerID, page, limit)
}

func (s *FileService) RenameFile(ctx context.Context, fileID uuid.UUID, ownerID uint32, newName string) (*fileInfo.File, error) {
	file, err := s.fileRepo.GetOwnedFile(ctx, fileID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("lookup file: %w", err)
	}
	if file == nil {
		return nil, ErrNotFound
	}
	if err := s.fileRepo.RenameFile(ctx, fileID, newName); err != nil {
		return nil, fmt.Errorf("rename file: %w", err)
	}
	file.Name = newName
	return file, nil
}

// SoftDelete moves an owned file to the trash.
func (s *FileService) SoftDelete(ctx context.Context, fileID uuid.UUID, ownerID uint32) error {
	file, err := s.fileRepo.GetOwnedFile(ctx, fileID, ownerID)
	if err != nil {
		return fmt.Errorf("lookup file: %w", err)
	}
	if file == nil {
		return ErrNotFound
	}
	if err := s.fileRepo.SoftDeleteFile(ctx, fileID, time.Now()); err != nil {
		return fmt.Errorf("trash file: %w", err)
	}
	return nil
}

// Restore brings a trashed file back.
func (s *FileService) Restore(ctx context.Context, fileID uuid.UUID, ownerID uint32) error {
	file, err := s.trashedFile(ctx, fileID, ownerID)
	if err != nil {
		return err
	}
	if err := s.fileRepo.RestoreFile(ctx, file.ID); err != nil {
		return fmt.Errorf("restore file: %w", err)
	}
	return nil
}

// HardDelete purges a trashed file from every store. Asset service cleanup is
// best-effort; the blob and the record must go.
func (s *FileService) HardDelete(ctx context.Context, fileID uuid.UUID, ownerID uint32) error {
	file, err := s.trashedFile(ctx, fileID, ownerID)
	if err != nil {
		return err
	}

	if err := s.blob.Delete(ctx, file.StorageKey); err != nil {
		return fmt.Errorf("delete file bytes: %w", err)
	}
	if err := s.gateway.Delete(ctx, file.RemoteAssetID); err != nil {
		s.log.Warn("asset service delete failed",
			zap.String("asset_id", file.RemoteAssetID), zap.Error(err))
	}
	if file.ThumbnailAssetID != nil && *file.ThumbnailAssetID != file.RemoteAssetID {
		if err := s.gateway.Delete(ctx, *file.ThumbnailAssetID); err != nil {
			s.log.Warn("thumbnail asset delete failed",
				zap.String("asset_id", *file.ThumbnailAssetID), zap.Error(err))
		}
	}
	if err := s.fileRepo.HardDeleteFile(ctx, file.ID); err != nil {
		return fmt.Errorf("purge file record: %w", err)
	}
	return nil
}

// DownloadURL presigns an attachment URL for an owned file.
func (s *FileService) DownloadURL(ctx context.Context, fileID uuid.UUID, ownerID uint32) (string, string, error) {
	file, err := s.fileRepo.GetOwnedFile(ctx, fileID, ownerID)
	if err != nil {
		return "", "", fmt.Errorf("lookup file: %w", err)
	}
	if file == nil {
		return "", "", ErrNotFound
	}
	url, err := s.blob.PresignedURL(ctx, file.StorageKey, file.Name, false, presignTTL)
	if err != nil {
		return "", "", fmt.Errorf("presign download: %w", err)
	}
	return url, file.Name, nil
}

// ViewURL presigns an inline URL for an owned file.
func (s *FileService) ViewURL(ctx context.Context, fileID uuid.UUID, ownerID uint32) (string, error) {
	file, err := s.fileRepo.GetOwnedFile(ctx, fileID, ownerID)
	if err != nil {
		return "", fmt.Errorf("lookup file: %w", err)
	}
	if file == nil {
		return "", ErrNotFound
	}
	url, err := s.blob.PresignedURL(ctx, file.StorageKey, file.Name, true, presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign view: %w", err)
	}
	return url, nil
}

// trashedFile returns the file only if ownerID owns it and it sits in trash.
func (s *FileService) trashedFile(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*fileInfo.File, error) {
	file, err := s.fileRepo.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("lookup file: %w", err)
	}
	if file == nil || file.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	if !file.IsDeleted {
		return nil, ErrNotDeleted
	}
	return file, nil
}

func (s *FileService) cleanupBlob(ctx context.Context, key string) {
	if err := s.blob.Delete(ctx, key); err != nil {
		s.log.Warn("orphaned blob cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *FileService) cleanupAsset(ctx context.Context, assetID string) {
	if err := s.gateway.Delete(ctx, assetID); err != nil {
		s.log.Warn("orphaned asset cleanup failed", zap.String("asset_id", assetID), zap.Error(err))
	}
}
