package shareService_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"filestorage-service/internal/model/fileInfo"
	"filestorage-service/internal/model/shareInfo"
	"filestorage-service/internal/repository/shareRepo"
	"filestorage-service/internal/service/shareService"
	"filestorage-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLinkRepo is an in-memory LinkRepo with the same uniqueness and
// atomic-increment semantics as the Postgres implementation.
type fakeLinkRepo struct {
	mu    sync.Mutex
	links map[uuid.UUID]*shareInfo.ShareLink
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[uuid.UUID]*shareInfo.ShareLink)}
}

func (r *fakeLinkRepo) Create(ctx context.Context, link *shareInfo.ShareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.IsActive && l.FileID == link.FileID && l.OwnerID == link.OwnerID {
			return shareRepo.ErrDuplicateActiveLink
		}
	}
	cp := *link
	r.links[link.ID] = &cp
	return nil
}

func (r *fakeLinkRepo) GetActiveByToken(ctx context.Context, token string) (*shareInfo.ShareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.IsActive && l.ShareToken == token {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLinkRepo) GetActiveByFileAndOwner(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*shareInfo.ShareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.IsActive && l.FileID == fileID && l.OwnerID == ownerID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLinkRepo) GetActiveByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID uint32) (*shareInfo.ShareLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[id]; ok && l.IsActive && l.OwnerID == ownerID {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeLinkRepo) Update(ctx context.Context, link *shareInfo.ShareLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.links[link.ID]; ok {
		cp := *link
		cp.DownloadCount = stored.DownloadCount
		r.links[link.ID] = &cp
	}
	return nil
}

func (r *fakeLinkRepo) Revoke(ctx context.Context, id uuid.UUID, ownerID uint32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || !l.IsActive || l.OwnerID != ownerID {
		return false, nil
	}
	l.IsActive = false
	return true, nil
}

func (r *fakeLinkRepo) IncrementDownloadCount(ctx context.Context, id uuid.UUID) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || !l.IsActive {
		return 0, false, nil
	}
	if l.MaxDownloads != nil && l.DownloadCount >= *l.MaxDownloads {
		return 0, false, nil
	}
	l.DownloadCount++
	return l.DownloadCount, true, nil
}

type fakeFileRepo struct {
	files map[uuid.UUID]*fileInfo.File
}

func (r *fakeFileRepo) GetFileByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error) {
	return r.files[fileID], nil
}

func (r *fakeFileRepo) GetOwnedFile(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*fileInfo.File, error) {
	f := r.files[fileID]
	if f == nil || f.OwnerID != ownerID || f.IsDeleted {
		return nil, nil
	}
	return f, nil
}

type fakeBlob struct{}

func (fakeBlob) PresignedURL(ctx context.Context, key, filename string, inline bool, expiry time.Duration) (string, error) {
	mode := "attachment"
	if inline {
		mode = "inline"
	}
	return fmt.Sprintf("https://blob.local/%s?mode=%s", key, mode), nil
}

type env struct {
	svc     *shareService.ShareService
	links   *fakeLinkRepo
	fileID  uuid.UUID
	ownerID uint32
}

func setup(t *testing.T) *env {
	t.Helper()
	fileID := uuid.New()
	files := &fakeFileRepo{files: map[uuid.UUID]*fileInfo.File{
		fileID: {
			ID:         fileID,
			OwnerID:    7,
			Name:       "report.pdf",
			StorageKey: fileID.String(),
			Format:     "pdf",
		},
	}}
	links := newFakeLinkRepo()
	svc := shareService.New(links, files, fakeBlob{}, nil, logger.NewNop())
	return &env{svc: svc, links: links, fileID: fileID, ownerID: 7}
}

func defaults() shareService.LinkDefaults {
	return shareService.LinkDefaults{CanView: true, CanDownload: true}
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, created, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, defaults())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.ShareToken, 32) // 16 bytes hex encoded

	// customize, then ask again: settings must survive
	off := false
	_, err = e.svc.Update(ctx, first.ID, e.ownerID, shareService.LinkPatch{CanDownload: &off})
	require.NoError(t, err)

	second, created, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, defaults())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ShareToken, second.ShareToken)
	assert.False(t, second.CanDownload)
}

// racingLinkRepo simulates another request creating the link between our
// existence check and our insert.
type racingLinkRepo struct {
	*fakeLinkRepo
	winner  *shareInfo.ShareLink
	lookups int
}

func (r *racingLinkRepo) GetActiveByFileAndOwner(ctx context.Context, fileID uuid.UUID, ownerID uint32) (*shareInfo.ShareLink, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, nil
	}
	cp := *r.winner
	return &cp, nil
}

func (r *racingLinkRepo) Create(ctx context.Context, link *shareInfo.ShareLink) error {
	return shareRepo.ErrDuplicateActiveLink
}

func TestGetOrCreate_CreationRaceReturnsWinner(t *testing.T) {
	e := setup(t)
	winner := &shareInfo.ShareLink{
		ID:         uuid.New(),
		FileID:     e.fileID,
		OwnerID:    e.ownerID,
		ShareToken: "winner-token",
		CanView:    true,
		IsActive:   true,
	}
	racing := &racingLinkRepo{fakeLinkRepo: e.links, winner: winner}
	svc := shareService.New(racing, fileRepoFor(e), fakeBlob{}, nil, logger.NewNop())

	link, created, err := svc.GetOrCreate(context.Background(), e.fileID, e.ownerID, defaults())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "winner-token", link.ShareToken)
}

func fileRepoFor(e *env) *fakeFileRepo {
	return &fakeFileRepo{files: map[uuid.UUID]*fileInfo.File{
		e.fileID: {ID: e.fileID, OwnerID: e.ownerID, Name: "report.pdf", StorageKey: e.fileID.String(), Format: "pdf"},
	}}
}

func TestGetOrCreate_FileNotOwned(t *testing.T) {
	e := setup(t)

	_, _, err := e.svc.GetOrCreate(context.Background(), e.fileID, 99, defaults())
	assert.ErrorIs(t, err, shareService.ErrFileNotFound)
}

func TestGetOrCreate_WithPassword(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	d := defaults()
	d.Password = strPtr("hunter2")
	link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
	require.NoError(t, err)
	require.True(t, link.HasPassword())

	view, err := e.svc.Resolve(ctx, link.ShareToken, nil)
	require.NoError(t, err)
	assert.True(t, view.Access.RequiresPassword)
	assert.Empty(t, view.ContentURL)

	view, err = e.svc.VerifyPassword(ctx, link.ShareToken, "hunter2")
	require.NoError(t, err)
	assert.False(t, view.Access.RequiresPassword)
	assert.NotEmpty(t, view.ContentURL)

	_, err = e.svc.VerifyPassword(ctx, link.ShareToken, "wrong")
	assert.ErrorIs(t, err, shareService.ErrPasswordIncorrect)
}

func TestVerifyPassword_NotProtected(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, defaults())
	require.NoError(t, err)

	_, err = e.svc.VerifyPassword(ctx, link.ShareToken, "anything")
	assert.ErrorIs(t, err, shareService.ErrNotProtected)
}

func TestUpdate_PartialSemantics(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	d := defaults()
	d.Password = strPtr("hunter2")
	link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
	require.NoError(t, err)

	t.Run("unset fields keep previous values", func(t *testing.T) {
		off := false
		updated, err := e.svc.Update(ctx, link.ID, e.ownerID, shareService.LinkPatch{CanView: &off})
		require.NoError(t, err)
		assert.False(t, updated.CanView)
		assert.True(t, updated.CanDownload)
		assert.True(t, updated.HasPassword())
	})

	t.Run("removePassword wins over new password", func(t *testing.T) {
		updated, err := e.svc.Update(ctx, link.ID, e.ownerID, shareService.LinkPatch{
			Password:       strPtr("new-secret"),
			RemovePassword: true,
		})
		require.NoError(t, err)
		assert.False(t, updated.HasPassword())
	})

	t.Run("expiry can be cleared", func(t *testing.T) {
		exp := time.Now().Add(24 * time.Hour)
		updated, err := e.svc.Update(ctx, link.ID, e.ownerID, shareService.LinkPatch{
			ExpiresAt: &exp, ExpiresAtSet: true,
		})
		require.NoError(t, err)
		require.NotNil(t, updated.ExpiresAt)

		updated, err = e.svc.Update(ctx, link.ID, e.ownerID, shareService.LinkPatch{ExpiresAtSet: true})
		require.NoError(t, err)
		assert.Nil(t, updated.ExpiresAt)
	})

	t.Run("not owned reports not found", func(t *testing.T) {
		_, err := e.svc.Update(ctx, link.ID, 99, shareService.LinkPatch{})
		assert.ErrorIs(t, err, shareService.ErrNotFound)
	})
}

func TestRevoke(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, defaults())
	require.NoError(t, err)

	require.NoError(t, e.svc.Revoke(ctx, link.ID, e.ownerID))

	// the row survives but every evaluation reports not found
	_, err = e.svc.Resolve(ctx, link.ShareToken, nil)
	assert.ErrorIs(t, err, shareService.ErrNotFound)

	_, err = e.svc.RecordDownload(ctx, link.ShareToken, nil)
	assert.ErrorIs(t, err, shareService.ErrNotFound)

	// revoking again is indistinguishable from a missing link
	assert.ErrorIs(t, e.svc.Revoke(ctx, link.ID, e.ownerID), shareService.ErrNotFound)
}

func TestRecordDownload_Quota(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	d := defaults()
	d.MaxDownloads = intPtr(3)
	link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		url, err := e.svc.RecordDownload(ctx, link.ShareToken, nil)
		require.NoError(t, err)
		assert.Contains(t, url, "mode=attachment")
	}

	_, err = e.svc.RecordDownload(ctx, link.ShareToken, nil)
	assert.ErrorIs(t, err, shareService.ErrQuotaExceeded)
}

func TestRecordDownload_ConcurrentNeverExceedsQuota(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	const quota = 5
	d := defaults()
	d.MaxDownloads = intPtr(quota)
	link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
	require.NoError(t, err)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.svc.RecordDownload(ctx, link.ShareToken, nil); err == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	assert.Equal(t, quota, len(granted))

	stored, err := e.links.GetActiveByToken(ctx, link.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, quota, stored.DownloadCount)
}

func TestRecordDownload_TrashedFileSpendsNoQuota(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	files := fileRepoFor(e)
	links := newFakeLinkRepo()
	svc := shareService.New(links, files, fakeBlob{}, nil, logger.NewNop())

	d := defaults()
	d.MaxDownloads = intPtr(3)
	link, _, err := svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
	require.NoError(t, err)

	files.files[e.fileID].IsDeleted = true

	_, err = svc.RecordDownload(ctx, link.ShareToken, nil)
	assert.ErrorIs(t, err, shareService.ErrNotFound)

	stored, err := links.GetActiveByToken(ctx, link.ShareToken)
	require.NoError(t, err)
	assert.Zero(t, stored.DownloadCount)
}

func TestRecordDownload_PermissionAndPasswordGates(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	t.Run("download disabled", func(t *testing.T) {
		d := defaults()
		d.CanDownload = false
		link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
		require.NoError(t, err)

		_, err = e.svc.RecordDownload(ctx, link.ShareToken, nil)
		assert.ErrorIs(t, err, shareService.ErrDownloadNotAllowed)

		require.NoError(t, e.svc.Revoke(ctx, link.ID, e.ownerID))
	})

	t.Run("password pending blocks download", func(t *testing.T) {
		d := defaults()
		d.Password = strPtr("hunter2")
		link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
		require.NoError(t, err)

		_, err = e.svc.RecordDownload(ctx, link.ShareToken, nil)
		assert.ErrorIs(t, err, shareService.ErrPasswordRequired)

		url, err := e.svc.RecordDownload(ctx, link.ShareToken, strPtr("hunter2"))
		require.NoError(t, err)
		assert.NotEmpty(t, url)
	})
}

func TestResolve_Expired(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	d := defaults()
	d.ExpiresAt = timePtr(time.Now().Add(-time.Hour))
	link, _, err := e.svc.GetOrCreate(ctx, e.fileID, e.ownerID, d)
	require.NoError(t, err)

	_, err = e.svc.Resolve(ctx, link.ShareToken, nil)
	assert.ErrorIs(t, err, shareService.ErrExpired)
}
