package fileHandler_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filestorage-service/internal/assetgw"
	"filestorage-service/internal/handler/fileHandler"
	"filestorage-service/internal/model/fileInfo"
	"filestorage-service/internal/repository/fileRepo"
	"filestorage-service/internal/service/fileService"
	"filestorage-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const ownerID uint32 = 7

type fileStore struct {
	files map[uuid.UUID]*fileInfo.File
}

func (s *fileStore) CreateFile(ctx context.Context, file *fileInfo.File) error {
	s.files[file.ID] = file
	return nil
}

func (s *fileStore) GetFileByID(ctx context.Context, id uuid.UUID) (*fileInfo.File, error) {
	return s.files[id], nil
}

func (s *fileStore) GetOwnedFile(ctx context.Context, id uuid.UUID, owner uint32) (*fileInfo.File, error) {
	f := s.files[id]
	if f == nil || f.OwnerID != owner || f.IsDeleted {
		return nil, nil
	}
	return f, nil
}

func (s *fileStore) ListFiles(ctx context.Context, owner uint32, filter fileRepo.ListFilter) ([]*fileInfo.File, int, error) {
	return nil, 0, nil
}

func (s *fileStore) ListTrash(ctx context.Context, owner uint32, page, limit int) ([]*fileInfo.File, int, error) {
	return nil, 0, nil
}

func (s *fileStore) RenameFile(ctx context.Context, id uuid.UUID, newName string) error { return nil }

func (s *fileStore) SoftDeleteFile(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	return nil
}

func (s *fileStore) RestoreFile(ctx context.Context, id uuid.UUID) error    { return nil }
func (s *fileStore) HardDeleteFile(ctx context.Context, id uuid.UUID) error { return nil }

func (s *fileStore) SetThumbnail(ctx context.Context, id uuid.UUID, assetID, url string) error {
	return nil
}

type fakeBlob struct{}

func (fakeBlob) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return nil
}

func (fakeBlob) Delete(ctx context.Context, key string) error { return nil }

func (fakeBlob) PresignedURL(ctx context.Context, key, filename string, inline bool, expiry time.Duration) (string, error) {
	mode := "attachment"
	if inline {
		mode = "inline"
	}
	return fmt.Sprintf("https://blob.local/%s?mode=%s", key, mode), nil
}

type fakeGateway struct{}

func (fakeGateway) Upload(ctx context.Context, name, contentType string, data io.Reader, size int64) (string, error) {
	return "asset-1", nil
}

func (fakeGateway) Delete(ctx context.Context, assetID string) error { return nil }

func (fakeGateway) CheckReady(ctx context.Context, assetID string) (bool, error) { return true, nil }

func (fakeGateway) SubmitConversion(ctx context.Context, req assetgw.ConversionRequest) (string, error) {
	return "job", nil
}

func (fakeGateway) JobStatus(ctx context.Context, token string) (*assetgw.JobState, error) {
	return &assetgw.JobState{Status: assetgw.StatusFinished, ResultAssetID: "thumb"}, nil
}

func (fakeGateway) ContentURL(assetID string) string { return "https://assets.local/f/" + assetID }
func (fakeGateway) PreviewURL(assetID string) string {
	return "https://assets.local/f/" + assetID + "/preview"
}

type stubConverter struct{}

func (stubConverter) GenerateThumbnail(ctx context.Context, assetID string) (string, error) {
	return "thumb", nil
}

func fakeAuth(c *gin.Context) {
	c.Set("userID", ownerID)
	c.Next()
}

func newRouter(t *testing.T) (*gin.Engine, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fileID := uuid.New()
	store := &fileStore{files: map[uuid.UUID]*fileInfo.File{
		fileID: {ID: fileID, OwnerID: ownerID, Name: "cat.png", StorageKey: fileID.String(), Format: "image"},
	}}
	svc := fileService.New(store, fakeBlob{}, fakeGateway{}, stubConverter{}, logger.NewNop())
	h := fileHandler.New(svc, logger.NewNop())

	r := gin.New()
	h.Register(r.Group("/api", fakeAuth))
	return r, fileID
}

func do(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestView(t *testing.T) {
	r, fileID := newRouter(t)

	t.Run("redirects inline to the presigned url", func(t *testing.T) {
		w := do(r, "/api/files/"+fileID.String()+"/view")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Contains(t, w.Header().Get("Location"), "mode=inline")
	})

	t.Run("unknown file", func(t *testing.T) {
		w := do(r, "/api/files/"+uuid.NewString()+"/view")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := do(r, "/api/files/not-a-uuid/view")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDownloadRedirect(t *testing.T) {
	r, fileID := newRouter(t)

	w := do(r, "/api/files/"+fileID.String()+"/download")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "mode=attachment")
}
