package shareRepo

import (
	"context"
	"errors"

	"filestorage-service/internal/model/shareInfo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateActiveLink is returned when an insert collides with the partial
// unique index guarding one active link per (file, owner).
var ErrDuplicateActiveLink = errors.New("active share link already exists")

const linkColumns = `id, file_id, owner_id, share_token, can_view, can_download,
	 password_hash, expires_at, max_downloads, download_count, is_active, created_at, updated_at`

type ShareRepository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{pool: pool}
}

func (r *ShareRepository) Create(ctx context.Context, link *shareInfo.ShareLink) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO shared_links
		 (id, file_id, owner_id, share_token, can_view, can_download,
		  password_hash, expires_at, max_downloads, download_count, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		link.ID, link.FileID, link.OwnerID, link.ShareToken, link.CanView, link.CanDownload,
		link.PasswordHash, link.ExpiresAt, link.MaxDownloads, link.DownloadCount,
		link.IsActive, link.CreatedAt, link.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateActiveLink
	}
	return err
}

func (r *ShareRepository) GetActiveByToken(ctx context.Context, token string) (*shareInfo.ShareLink, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM shared_links
		 WHERE share_token = $1 AND is_active = TRUE`, token)
	return scanLink(row)
}

func (r *ShareRepository) GetActiveByFileAndOwner(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*shareInfo.ShareLink, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM shared_links
		 WHERE file_id = $1 AND owner_id = $2 AND is_active = TRUE`, fileID, ownerID)
	return scanLink(row)
}

func (r *ShareRepository) GetActiveByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID uint32) (*shareInfo.ShareLink, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM shared_links
		 WHERE id = $1 AND owner_id = $2 AND is_active = TRUE`, id, ownerID)
	return scanLink(row)
}

func (r *ShareRepository) Update(ctx context.Context, link *shareInfo.ShareLink) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE shared_links
		 SET can_view = $1, can_download = $2, password_hash = $3,
		     expires_at = $4, max_downloads = $5, updated_at = $6
		 WHERE id = $7`,
		link.CanView, link.CanDownload, link.PasswordHash,
		link.ExpiresAt, link.MaxDownloads, link.UpdatedAt, link.ID)
	return err
}

// Revoke soft-disables the link; the row stays for audit. Returns false when
// no active link matches id and owner.
func (r *ShareRepository) Revoke(ctx context.Context, id uuid.UUID, ownerID uint32) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE shared_links SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND owner_id = $2 AND is_active = TRUE`, id, ownerID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// IncrementDownloadCount is the quota-enforcing conditional increment. The
// guard runs inside the UPDATE so concurrent downloads can never push the
// counter past max_downloads. Returns the new count and false when the quota
// was already spent.
func (r *ShareRepository) IncrementDownloadCount(ctx context.Context, id uuid.UUID) (int, bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE shared_links
		 SET download_count = download_count + 1, updated_at = now()
		 WHERE id = $1 AND is_active = TRUE
		   AND (max_downloads IS NULL OR download_count < max_downloads)
		 RETURNING download_count`, id).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func scanLink(row pgx.Row) (*shareInfo.ShareLink, error) {
	var l shareInfo.ShareLink
	err := row.Scan(&l.ID, &l.FileID, &l.OwnerID, &l.ShareToken, &l.CanView, &l.CanDownload,
		&l.PasswordHash, &l.ExpiresAt, &l.MaxDownloads, &l.DownloadCount,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
