package analyses

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/server/respond"
)

// Policy selects how a handler shapes its response around the shared
// submit/poll mechanics.
type Policy int

const (
	// PolicyWait submits and blocks until the job is terminal.
	PolicyWait Policy = iota
	// PolicyHandle submits and returns the handle immediately.
	PolicyHandle
	// PolicyCheck resumes polling an earlier job by operation id.
	PolicyCheck
)

const timeoutMessage = "Document analysis is taking longer than expected. Try polling again."

// MaxBodyBytes caps analysis request bodies. Base64 documents dominate the size.
const MaxBodyBytes int64 = 64 << 20

// Handler wires HTTP handlers to the orchestrator.
type Handler struct {
	Orch    *Orchestrator
	checks  *checkLimiter
	maxBody int64
}

// NewHandler constructs a Handler. A nil orchestrator answers 500 on every route.
func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{Orch: orch, checks: newCheckLimiter(checkLimitWindow, nil), maxBody: MaxBodyBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/extract", h.extract)
	rg.POST("/extractDocument", h.extract)
	rg.POST("/analyses", h.startAnalysis)
	rg.GET("/analyses/status", h.checkAnalysis)
	rg.GET("/content", h.getContent)
	rg.GET("/getContent", h.getContent)
}

type analyzeRequest struct {
	FileURL string          `json:"fileUrl"`
	Base64  string          `json:"base64"`
	Model   string          `json:"model"`
	Format  string          `json:"format"`
	Pages   json.RawMessage `json:"pages"`
}

func (h *Handler) extract(c *gin.Context)       { h.serve(c, PolicyWait) }
func (h *Handler) startAnalysis(c *gin.Context) { h.serve(c, PolicyHandle) }
func (h *Handler) checkAnalysis(c *gin.Context) { h.serve(c, PolicyCheck) }

func (h *Handler) serve(c *gin.Context, policy Policy) {
	if !h.ready(c) {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	var job *Job
	switch policy {
	case PolicyCheck:
		id := strings.TrimSpace(c.Query("id"))
		if id == "" {
			respond.Error(c, http.StatusBadRequest, CodeInvalidRequest, "Missing 'id' query parameter", nil)
			return
		}
		if !h.checks.Allow(c.ClientIP(), id) {
			retryAfter := h.checks.RetryAfterSeconds()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			respond.Error(c, http.StatusTooManyRequests, CodeCheckTooFrequent, "Status for this operation was checked too recently", gin.H{
				"retryAfterMs": retryAfter * 1000,
			})
			return
		}
		resumed, err := h.Orch.Resume(ParseModel(c.Query("model")), id)
		if err != nil {
			writeError(c, nil, err)
			return
		}
		job = resumed
		job.Format = ParseFormat(c.Query("format"))
	default:
		req, ok := h.bindAnalyzeRequest(c)
		if !ok {
			return
		}
		submitted, err := h.Orch.Submit(ctx, req)
		if err != nil {
			writeError(c, nil, err)
			return
		}
		job = submitted
	}
	c.Set("operationId", job.OperationID)

	if policy == PolicyHandle {
		respond.JSON(c, http.StatusAccepted, gin.H{
			"operationId":       job.OperationID,
			"operationLocation": job.Handle,
			"model":             job.Model.RemoteID(),
			"format":            job.Format,
			"status":            job.State,
		})
		return
	}

	job, err := h.Orch.Poll(ctx, job)
	if err != nil {
		writeError(c, job, err)
		return
	}
	c.Set("statusTransition", string(job.State))
	writeTerminal(c, job)
}

func (h *Handler) getContent(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, CodeInvalidRequest, "Missing 'id' query parameter", nil)
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	resp, err := h.Orch.Content(ctx, id)
	if err != nil {
		writeError(c, nil, err)
		return
	}
	respond.Raw(c, resp.StatusCode, resp.Body)
}

func (h *Handler) ready(c *gin.Context) bool {
	if h == nil || h.Orch == nil {
		respond.Error(c, http.StatusInternalServerError, CodeNotConfigured, "Missing AZURE_DI_ENDPOINT or AZURE_DI_KEY", nil)
		return false
	}
	return true
}

func (h *Handler) bindAnalyzeRequest(c *gin.Context) (Request, bool) {
	var body analyzeRequest
	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil)
			return Request{}, false
		}
		respond.Error(c, http.StatusBadRequest, CodeInvalidRequest, "invalid request body", nil)
		return Request{}, false
	}

	req, err := NewRequest(body.FileURL, body.Base64, body.Model, body.Format, pageSelector(body.Pages))
	if err != nil {
		writeError(c, nil, err)
		return Request{}, false
	}
	return req, true
}

// pageSelector accepts "1-3,5" as a string or a bare number.
func pageSelector(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

func writeTerminal(c *gin.Context, job *Job) {
	handleDetails := gin.H{
		"operationLocation": job.Handle,
		"operationId":       job.OperationID,
	}
	switch job.State {
	case StateSucceeded:
		var (
			raw     json.RawMessage
			content *string
			pages   json.RawMessage
		)
		if job.Result != nil {
			raw, content, pages = job.Result.Raw, job.Result.Content, job.Result.Pages
		}
		respond.OK(c, gin.H{
			"success":           true,
			"operationLocation": job.Handle,
			"operationId":       job.OperationID,
			"model":             job.Model.RemoteID(),
			"format":            job.Format,
			"status":            job.RemoteStatus,
			"result":            raw,
			"content":           content,
			"pages":             pages,
		})
	case StateFailed, StateCanceled:
		respond.Error(c, http.StatusBadRequest, CodeAnalysisFailed, "Document analysis "+job.RemoteStatus, gin.H{
			"success":     false,
			"status":      job.RemoteStatus,
			"operationId": job.OperationID,
			"payload":     job.Payload,
		})
	case StateNotFound:
		respond.Error(c, http.StatusNotFound, CodeOperationNotFound, "The analysis operation was not found or has expired", handleDetails)
	case StateTimedOut:
		handleDetails["attempts"] = job.Attempts
		handleDetails["model"] = job.Model.RemoteID()
		respond.Error(c, http.StatusRequestTimeout, CodeAnalysisTimeout, timeoutMessage, handleDetails)
	default:
		respond.Error(c, http.StatusInternalServerError, CodeInternal, "analysis ended in unexpected state "+string(job.State), handleDetails)
	}
}

func writeError(c *gin.Context, job *Job, err error) {
	var upErr *UpstreamError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		respond.Error(c, http.StatusBadRequest, CodeInvalidRequest, "Provide either 'fileUrl' or 'base64'", nil)
	case errors.Is(err, ErrForeignLocator):
		respond.Error(c, http.StatusBadRequest, CodeInvalidRequest, "'id' must be an operation id or a locator on the configured endpoint", nil)
	case errors.As(err, &upErr):
		details := gin.H{}
		if len(upErr.Details) > 0 {
			details["upstream"] = upErr.Details
		}
		if upErr.Status != 0 {
			details["upstreamStatus"] = upErr.Status
		}
		if job != nil {
			details["operationLocation"] = job.Handle
			details["operationId"] = job.OperationID
		}
		respond.Error(c, upErr.HTTPStatus(), upErr.Code, upErr.Error(), details)
	default:
		respond.Error(c, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
	}
}
