package fileRepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"filestorage-service/internal/model/fileInfo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fileColumns = `id, owner_id, name, remote_asset_id, storage_key, format, size,
	 thumbnail_asset_id, thumbnail_url, is_deleted, deleted_at, created_at, updated_at`

type FileRepository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *FileRepository {
	return &FileRepository{pool: pool}
}

// ListFilter narrows and pages ListFiles results.
type ListFilter struct {
	Search string
	Format string
	Page   int
	Limit  int
}

func (r *FileRepository) CreateFile(ctx context.Context, file *fileInfo.File) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO files (id, owner_id, name, remote_asset_id, storage_key, format, size, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		file.ID, file.OwnerID, file.Name, file.RemoteAssetID, file.StorageKey,
		file.Format, file.Size, file.CreatedAt, file.UpdatedAt)
	return err
}

func (r *FileRepository) GetFileByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID)
	return scanFile(row)
}

// GetOwnedFile returns the non-deleted file only when ownerID owns it.
func (r *FileRepository) GetOwnedFile(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*fileInfo.File, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE`, fileID, ownerID)
	return scanFile(row)
}

func (r *FileRepository) ListFiles(ctx context.Context, ownerID uint32, filter ListFilter) ([]*fileInfo.File, int, error) {
	where := []string{"owner_id = $1", "is_deleted = FALSE"}
	args := []interface{}{ownerID}

	if filter.Format != "" {
		args = append(args, filter.Format)
		where = append(where, fmt.Sprintf("format = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM files WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	rows, err := r.pool.Query(ctx,
		`SELECT `+fileColumns+` FROM files WHERE `+clause+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	files, err := scanFiles(rows)
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func (r *FileRepository) ListTrash(ctx context.Context, ownerID uint32, page, limit int) ([]*fileInfo.File, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM files WHERE owner_id = $1 AND is_deleted = TRUE`,
		ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE owner_id = $1 AND is_deleted = TRUE
		 ORDER BY deleted_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	files, err := scanFiles(rows)
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func (r *FileRepository) RenameFile(ctx context.Context, fileID uuid.UUID, newName string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE files SET name = $1, updated_at = now() WHERE id = $2`,
		newName, fileID)
	return err
}

func (r *FileRepository) SoftDeleteFile(ctx context.Context, fileID uuid.UUID, deletedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE files SET is_deleted = TRUE, deleted_at = $1, updated_at = now() WHERE id = $2`,
		deletedAt, fileID)
	return err
}

func (r *FileRepository) RestoreFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE files SET is_deleted = FALSE, deleted_at = NULL, updated_at = now() WHERE id = $1`,
		fileID)
	return err
}

func (r *FileRepository) HardDeleteFile(ctx context.Context, fileID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM shared_links WHERE file_id = $1`, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetThumbnail stores the asset id and URL as a pair, and only once: a
// successful thumbnail is never overwritten by a later retry's fallback.
func (r *FileRepository) SetThumbnail(ctx context.Context, fileID uuid.UUID, assetID, url string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE files SET thumbnail_asset_id = $1, thumbnail_url = $2, updated_at = now()
		 WHERE id = $3 AND thumbnail_asset_id IS NULL`,
		assetID, url, fileID)
	return err
}

func scanFile(row pgx.Row) (*fileInfo.File, error) {
	var f fileInfo.File
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.RemoteAssetID, &f.StorageKey,
		&f.Format, &f.Size, &f.ThumbnailAssetID, &f.ThumbnailURL,
		&f.IsDeleted, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFiles(rows pgx.Rows) ([]*fileInfo.File, error) {
	var files []*fileInfo.File
	for rows.Next() {
		var f fileInfo.File
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.RemoteAssetID, &f.StorageKey,
			&f.Format, &f.Size, &f.ThumbnailAssetID, &f.ThumbnailURL,
			&f.IsDeleted, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}
