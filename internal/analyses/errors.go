package analyses

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidRequest = errors.New("provide either 'fileUrl' or 'base64'")
	ErrNotConfigured  = errors.New("document intelligence is not configured")
	ErrForeignLocator = errors.New("operation locator does not belong to the configured endpoint")
)

const (
	CodeInvalidRequest           = "invalid_request"
	CodeAnalyzeFailed            = "analyze_failed"
	CodeMissingOperationLocation = "missing_operation_location"
	CodeResultFetchFailed        = "result_fetch_failed"
	CodeContentFetchFailed       = "content_fetch_failed"
	CodeAnalysisFailed           = "analysis_failed"
	CodeOperationNotFound        = "operation_not_found"
	CodeAnalysisTimeout          = "analysis_timeout"
	CodeNotConfigured            = "docintel_not_configured"
	CodeCheckTooFrequent         = "poll_too_frequent"
	CodePayloadTooLarge          = "payload_too_large"
	CodeInternal                 = "internal_error"
)

// UpstreamError reports a rejection or transport failure from the remote service.
// Status is the upstream HTTP status when one was received, otherwise 0.
type UpstreamError struct {
	Code    string
	Status  int
	Details json.RawMessage
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := e.Code
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: upstream status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// HTTPStatus is the status to surface to the caller.
func (e *UpstreamError) HTTPStatus() int {
	if e.Status >= 400 && e.Status <= 599 {
		return e.Status
	}
	return http.StatusBadGateway
}
