// Package fileHandler exposes the owner-facing file routes.
package fileHandler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"filestorage-service/internal/repository/fileRepo"
	"filestorage-service/internal/service/fileService"
	"filestorage-service/pkg/logger"
	"filestorage-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUploadSize bounds a single upload to 100 MiB.
const maxUploadSize = 100 << 20

type Handler struct {
	files *fileService.FileService
	log   *logger.Logger
}

func New(files *fileService.FileService, log *logger.Logger) *Handler {
	return &Handler{files: files, log: log}
}

// Register mounts the file routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/files/upload", h.Upload)
	rg.GET("/files", h.List)
	rg.GET("/files/trash", h.ListTrash)
	rg.PUT("/files/:fileId/rename", h.Rename)
	rg.DELETE("/files/:fileId", h.Trash)
	rg.POST("/files/:fileId/restore", h.Restore)
	rg.DELETE("/files/:fileId/purge", h.Purge)
	rg.GET("/files/:fileId/download", h.Download)
	rg.GET("/files/:fileId/view", h.View)
	rg.GET("/pdf-thumbnail/:fileId", h.PdfThumbnail)
}

func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file field is required")
		return
	}
	if fileHeader.Size > maxUploadSize {
		badRequest(c, "file is too large")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.fail(c, err)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	file, err := h.files.UploadFile(c.Request.Context(), middleware.UserID(c),
		fileHeader.Filename, contentType, data)
	if err != nil {
		if errors.Is(err, fileService.ErrUnsupportedType) {
			badRequest(c, "unsupported file type")
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "file uploaded",
		"data":    file,
	})
}

func (h *Handler) List(c *gin.Context) {
	filter := fileRepo.ListFilter{
		Search: c.Query("search"),
		Format: c.Query("format"),
		Page:   intQuery(c, "page", 1),
		Limit:  intQuery(c, "limit", 20),
	}

	files, total, err := h.files.ListFiles(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"files": files,
			"total": total,
		},
	})
}

func (h *Handler) ListTrash(c *gin.Context) {
	files, total, err := h.files.ListTrash(c.Request.Context(), middleware.UserID(c),
		intQuery(c, "page", 1), intQuery(c, "limit", 20))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"files": files,
			"total": total,
		},
	})
}

func (h *Handler) Rename(c *gin.Context) {
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	file, err := h.files.RenameFile(c.Request.Context(), fileID, middleware.UserID(c), req.Name)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "file renamed",
		"data":    file,
	})
}

func (h *Handler) Trash(c *gin.Context) {
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	if err := h.files.SoftDelete(c.Request.Context(), fileID, middleware.UserID(c)); err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "file moved to trash"})
}

func (h *Handler) Restore(c *gin.Context) {
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	if err := h.files.Restore(c.Request.Context(), fileID, middleware.UserID(c)); err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "file restored"})
}

func (h *Handler) Purge(c *gin.Context) {
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	if err := h.files.HardDelete(c.Request.Context(), fileID, middleware.UserID(c)); err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "file permanently deleted"})
}

func (h *Handler) Download(c *gin.Context) {
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	url, _, err := h.files.DownloadURL(c.Request.Context(), fileID, middleware.UserID(c))
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *Handler) View(c *gin.Context) {
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	url, err := h.files.ViewURL(c.Request.Context(), fileID, middleware.UserID(c))
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *Handler) PdfThumbnail(c *gin.Context) {
	fileID, ok := fileIDParam(c)
	if !ok {
		return
	}
	url, err := h.files.PdfThumbnail(c.Request.Context(), fileID, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, fileService.ErrNotPDF) {
			badRequest(c, "file is not a pdf")
			return
		}
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"thumbnail_url": url},
	})
}

func (h *Handler) fileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fileService.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "file not found"})
	case errors.Is(err, fileService.ErrNotDeleted):
		badRequest(c, "file is not in trash")
	default:
		h.fail(c, err)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.log.Error("file request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "internal server error",
	})
}

func fileIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		badRequest(c, "invalid file id")
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
