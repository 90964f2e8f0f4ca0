package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"docextract-backend/internal/docintel"
)

const testLocator = "https://di.example/documentintelligence/documentModels/prebuilt-layout/analyzeResults/op-123?api-version=2024-11-30"

type pollStep struct {
	status int
	body   string
	err    error
}

// fakeRemote replays scripted poll responses; the last step repeats.
type fakeRemote struct {
	mu sync.Mutex

	analyzeLocator string
	analyzeResp    *docintel.Response
	analyzeErr     error
	analyzeCalls   []docintel.AnalyzeRequest

	steps     []pollStep
	polled    []string
	pollCount int

	contentResp *docintel.Response
	contentErr  error
	contentIDs  []string
}

func newFakeRemote(steps ...pollStep) *fakeRemote {
	return &fakeRemote{
		analyzeLocator: testLocator,
		analyzeResp:    &docintel.Response{StatusCode: http.StatusAccepted, Header: http.Header{}},
		steps:          steps,
	}
}

func (f *fakeRemote) Analyze(_ context.Context, req docintel.AnalyzeRequest) (string, *docintel.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls = append(f.analyzeCalls, req)
	if f.analyzeErr != nil {
		return "", f.analyzeResp, f.analyzeErr
	}
	if f.analyzeResp.StatusCode != http.StatusAccepted {
		return "", f.analyzeResp, nil
	}
	return f.analyzeLocator, f.analyzeResp, nil
}

func (f *fakeRemote) GetOperation(_ context.Context, locator string) (*docintel.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, locator)
	idx := f.pollCount
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.pollCount++
	step := f.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &docintel.Response{StatusCode: step.status, Header: http.Header{}, Body: json.RawMessage(step.body)}, nil
}

func (f *fakeRemote) GetContent(_ context.Context, id string) (*docintel.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentIDs = append(f.contentIDs, id)
	return f.contentResp, f.contentErr
}

func (f *fakeRemote) ResultLocator(modelID, operationID string) string {
	return "https://di.example/documentintelligence/documentModels/" + modelID + "/analyzeResults/" + operationID + "?api-version=2024-11-30"
}

func (f *fakeRemote) OwnsLocator(locator string) bool {
	return strings.HasPrefix(locator, "https://di.example/documentintelligence/")
}

func running() pollStep { return pollStep{status: http.StatusOK, body: `{"status":"running"}`} }
func notFound() pollStep { return pollStep{status: http.StatusNotFound, body: `{"error":{"code":"NotFound"}}`} }
func succeeded() pollStep {
	return pollStep{status: http.StatusOK, body: `{"status":"succeeded","analyzeResult":{"modelId":"prebuilt-layout","content":"hello","pages":[{"pageNumber":1}]}}`}
}

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestOrchestrator(remote Remote) (*Orchestrator, *sleepRecorder) {
	rec := &sleepRecorder{}
	return NewOrchestrator(remote, Options{Sleep: rec.Sleep}), rec
}
