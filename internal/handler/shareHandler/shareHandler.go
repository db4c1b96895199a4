// Package shareHandler exposes the share-link routes: owner-facing link
// management behind auth, and the public token-addressed routes.
package shareHandler

import (
	"errors"
	"net/http"
	"time"

	"filestorage-service/internal/model/shareInfo"
	"filestorage-service/internal/service/shareService"
	"filestorage-service/pkg/logger"
	"filestorage-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	shares       *shareService.ShareService
	shareBaseURL string
	log          *logger.Logger
}

func New(shares *shareService.ShareService, shareBaseURL string, log *logger.Logger) *Handler {
	return &Handler{shares: shares, shareBaseURL: shareBaseURL, log: log}
}

// RegisterOwner mounts the authenticated link-management routes.
func (h *Handler) RegisterOwner(rg *gin.RouterGroup) {
	rg.POST("/share/create-share-link/:fileId", h.GetOrCreate)
	rg.PUT("/share/update/:shareId", h.Update)
	rg.DELETE("/share/:shareId", h.Revoke)
}

// RegisterPublic mounts the unauthenticated token routes.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/share/:shareToken", h.Resolve)
	rg.POST("/share/:shareToken/verify-password", h.VerifyPassword)
	rg.GET("/share/:shareToken/download", h.Download)
}

type linkRequest struct {
	CanView        *bool   `json:"canView"`
	CanDownload    *bool   `json:"canDownload"`
	Password       *string `json:"password"`
	RemovePassword bool    `json:"removePassword"`
	ExpiresInDays  *int    `json:"expiresInDays"`
	MaxDownloads   *int    `json:"maxDownloads"`
}

func (h *Handler) GetOrCreate(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		badRequest(c, "invalid file id")
		return
	}

	var req linkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	defaults := shareService.LinkDefaults{
		CanView:      true,
		CanDownload:  true,
		Password:     req.Password,
		ExpiresAt:    expiryFromDays(req.ExpiresInDays),
		MaxDownloads: normalizeMaxDownloads(req.MaxDownloads),
	}
	if req.CanView != nil {
		defaults.CanView = *req.CanView
	}
	if req.CanDownload != nil {
		defaults.CanDownload = *req.CanDownload
	}

	link, created, err := h.shares.GetOrCreate(c.Request.Context(), fileID, middleware.UserID(c), defaults)
	if err != nil {
		h.shareError(c, err)
		return
	}

	status := http.StatusOK
	message := "share link already exists"
	if created {
		status = http.StatusCreated
		message = "share link created"
	}
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    h.linkPayload(link),
	})
}

func (h *Handler) Update(c *gin.Context) {
	shareID, err := uuid.Parse(c.Param("shareId"))
	if err != nil {
		badRequest(c, "invalid share id")
		return
	}

	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	patch := shareService.LinkPatch{
		CanView:        req.CanView,
		CanDownload:    req.CanDownload,
		Password:       req.Password,
		RemovePassword: req.RemovePassword,
	}
	if req.ExpiresInDays != nil {
		patch.ExpiresAtSet = true
		patch.ExpiresAt = expiryFromDays(req.ExpiresInDays)
	}
	if req.MaxDownloads != nil {
		patch.MaxDownloadsSet = true
		patch.MaxDownloads = normalizeMaxDownloads(req.MaxDownloads)
	}

	link, err := h.shares.Update(c.Request.Context(), shareID, middleware.UserID(c), patch)
	if err != nil {
		h.shareError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "share link updated",
		"data":    h.linkPayload(link),
	})
}

func (h *Handler) Revoke(c *gin.Context) {
	shareID, err := uuid.Parse(c.Param("shareId"))
	if err != nil {
		badRequest(c, "invalid share id")
		return
	}
	if err := h.shares.Revoke(c.Request.Context(), shareID, middleware.UserID(c)); err != nil {
		h.shareError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "share link revoked"})
}

func (h *Handler) Resolve(c *gin.Context) {
	view, err := h.shares.Resolve(c.Request.Context(), c.Param("shareToken"), nil)
	if err != nil {
		h.shareError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    viewPayload(view),
	})
}

func (h *Handler) VerifyPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "password is required")
		return
	}

	view, err := h.shares.VerifyPassword(c.Request.Context(), c.Param("shareToken"), req.Password)
	if err != nil {
		h.shareError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "password accepted",
		"data":    viewPayload(view),
	})
}

func (h *Handler) Download(c *gin.Context) {
	var password *string
	if p, ok := c.GetQuery("password"); ok {
		password = &p
	}

	url, err := h.shares.RecordDownload(c.Request.Context(), c.Param("shareToken"), password)
	if err != nil {
		h.shareError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// viewPayload shapes the public response. A password-gated view exposes only
// enough metadata to render the unlock prompt.
func viewPayload(view *shareService.SharedFileView) gin.H {
	if view.Access.RequiresPassword {
		return gin.H{
			"requiresPassword": true,
			"file": gin.H{
				"name":   view.File.Name,
				"format": view.File.Format,
				"size":   view.File.Size,
			},
		}
	}
	return gin.H{
		"requiresPassword": false,
		"file": gin.H{
			"name":       view.File.Name,
			"format":     view.File.Format,
			"size":       view.File.Size,
			"contentUrl": view.ContentURL,
		},
		"permissions": gin.H{
			"canView":     view.Access.Link.CanView,
			"canDownload": view.Access.Link.CanDownload,
		},
	}
}

func (h *Handler) linkPayload(link *shareInfo.ShareLink) gin.H {
	return gin.H{
		"link":     link,
		"shareUrl": h.shareBaseURL + "/share/" + link.ShareToken,
	}
}

func (h *Handler) shareError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, shareService.ErrNotFound),
		errors.Is(err, shareService.ErrFileNotFound):
		respond(c, http.StatusNotFound, "not found")
	case errors.Is(err, shareService.ErrExpired):
		respond(c, http.StatusForbidden, "share link has expired")
	case errors.Is(err, shareService.ErrQuotaExceeded):
		respond(c, http.StatusForbidden, "download limit exceeded")
	case errors.Is(err, shareService.ErrDownloadNotAllowed):
		respond(c, http.StatusForbidden, "download is not allowed")
	case errors.Is(err, shareService.ErrPasswordRequired):
		respond(c, http.StatusUnauthorized, "password required")
	case errors.Is(err, shareService.ErrPasswordIncorrect):
		respond(c, http.StatusUnauthorized, "incorrect password")
	case errors.Is(err, shareService.ErrNotProtected):
		respond(c, http.StatusBadRequest, "share link is not password protected")
	case errors.Is(err, shareService.ErrTooManyAttempts):
		respond(c, http.StatusTooManyRequests, "too many password attempts")
	default:
		h.log.Error("share request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respond(c, http.StatusInternalServerError, "internal server error")
	}
}

// expiryFromDays converts the wire representation to an absolute timestamp.
// Zero or nil means no expiry.
func expiryFromDays(days *int) *time.Time {
	if days == nil || *days <= 0 {
		return nil
	}
	t := time.Now().AddDate(0, 0, *days)
	return &t
}

// normalizeMaxDownloads treats zero and negative values as unlimited.
func normalizeMaxDownloads(max *int) *int {
	if max == nil || *max <= 0 {
		return nil
	}
	return max
}

func badRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, message)
}

func respond(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
