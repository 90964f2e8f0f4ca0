package uploads

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/shared/metrics"
	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/server/respond"
	"docextract-backend/internal/shared/telemetry"
)

// MaxBodyBytes caps credential request bodies.
const MaxBodyBytes int64 = 64 << 10

type Handler struct {
	issuer  *Issuer
	maxBody int64
}

// NewHandler wires the issuer to HTTP. A nil issuer answers 500.
func NewHandler(issuer *Issuer) *Handler {
	return &Handler{issuer: issuer, maxBody: MaxBodyBytes}
}

type credentialRequest struct {
	OriginalName string `json:"originalName"`
	ContentType  string `json:"contentType"`
	Prefix       string `json:"prefix"`
}

type credentialResponse struct {
	OK            bool              `json:"ok"`
	BlobName      string            `json:"blobName"`
	BlobURL       string            `json:"blobUrl"`
	UploadURL     string            `json:"uploadUrl"`
	ReadURL       string            `json:"readUrl"`
	UploadHeaders map[string]string `json:"uploadHeaders"`
	StartsOn      time.Time         `json:"startsOn"`
	ExpiresOn     time.Time         `json:"expiresOn"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/sas", h.issue)
	rg.POST("/getAzureSAS", h.issue)
}

func (h *Handler) issue(c *gin.Context) {
	if h == nil || h.issuer == nil || h.issuer.Signer == nil {
		respond.Error(c, http.StatusInternalServerError, "storage_not_configured", "Missing storage configuration", nil)
		return
	}

	var req credentialRequest
	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	cred, err := h.issuer.Issue(c.Request.Context(), Intent{
		OriginalName: req.OriginalName,
		ContentType:  req.ContentType,
		Prefix:       req.Prefix,
	})
	if err != nil {
		var typeErr *UnsupportedTypeError
		switch {
		case errors.As(err, &typeErr):
			respond.Error(c, http.StatusBadRequest, "unsupported_type", typeErr.Error(), gin.H{
				"ext":     typeErr.Ext,
				"allowed": typeErr.Allowed,
			})
		case errors.Is(err, ErrNotConfigured):
			respond.Error(c, http.StatusInternalServerError, "storage_not_configured", "Missing storage configuration", nil)
		default:
			telemetry.Error("uploads.sign.failed", map[string]any{
				"err":        err.Error(),
				"request_id": middleware.RequestIDFromContext(c),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to generate upload credentials", nil)
		}
		return
	}

	c.Set("blobName", cred.BlobName)
	metrics.IncCredentialsIssued()
	respond.OK(c, credentialResponse{
		OK:            true,
		BlobName:      cred.BlobName,
		BlobURL:       cred.BlobURL,
		UploadURL:     cred.UploadURL,
		ReadURL:       cred.ReadURL,
		UploadHeaders: cred.UploadHeaders,
		StartsOn:      cred.StartsOn,
		ExpiresOn:     cred.ExpiresOn,
	})
}
