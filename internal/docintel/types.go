package docintel

import (
	"encoding/json"
	"strings"
)

// Operation status values reported by the service.
const (
	StatusNotStarted = "notStarted"
	StatusRunning    = "running"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// OperationStatus is the subset of a poll response the orchestrator inspects.
type OperationStatus struct {
	Status        string         `json:"status"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult,omitempty"`
}

// AnalyzeResult carries the extracted document. Pages is kept raw so callers
// receive the service's per-page structure unchanged.
type AnalyzeResult struct {
	ModelID       string          `json:"modelId,omitempty"`
	ContentFormat string          `json:"contentFormat,omitempty"`
	Content       *string         `json:"content"`
	Pages         json.RawMessage `json:"pages"`
}

// ParseOperationStatus decodes a poll body. Undecodable bodies yield an empty status.
func ParseOperationStatus(body json.RawMessage) OperationStatus {
	var st OperationStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return OperationStatus{}
	}
	st.Status = strings.TrimSpace(st.Status)
	if st.AnalyzeResult != nil && isJSONNull(st.AnalyzeResult.Pages) {
		st.AnalyzeResult.Pages = nil
	}
	return st
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}
