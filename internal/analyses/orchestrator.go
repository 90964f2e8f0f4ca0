package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docextract-backend/internal/docintel"
	"docextract-backend/internal/shared/metrics"
	"docextract-backend/internal/shared/telemetry"
)

const (
	DefaultMaxAttempts   = 30
	DefaultPollInterval  = 2 * time.Second
	DefaultNotFoundGrace = 2

	resultsPathSegment = "/analyzeResults/"
)

// Remote is the slice of the document intelligence client the orchestrator uses.
type Remote interface {
	Analyze(ctx context.Context, req docintel.AnalyzeRequest) (string, *docintel.Response, error)
	GetOperation(ctx context.Context, locator string) (*docintel.Response, error)
	GetContent(ctx context.Context, id string) (*docintel.Response, error)
	ResultLocator(modelID, operationID string) string
	OwnsLocator(locator string) bool
}

// Options tunes the polling loop. Zero values take the defaults.
type Options struct {
	MaxAttempts   int
	Interval      time.Duration
	NotFoundGrace int
	// Sleep waits between attempts; tests replace it to run instantly.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator submits analyses and polls them to a terminal state.
type Orchestrator struct {
	remote        Remote
	maxAttempts   int
	interval      time.Duration
	notFoundGrace int
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator builds an orchestrator over remote.
func NewOrchestrator(remote Remote, opts Options) *Orchestrator {
	o := &Orchestrator{
		remote:        remote,
		maxAttempts:   opts.MaxAttempts,
		interval:      opts.Interval,
		notFoundGrace: opts.NotFoundGrace,
		sleep:         opts.Sleep,
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = DefaultMaxAttempts
	}
	if o.interval <= 0 {
		o.interval = DefaultPollInterval
	}
	if o.notFoundGrace <= 0 {
		o.notFoundGrace = DefaultNotFoundGrace
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// Submit starts an analysis and returns the job in the submitted state.
// No remote call is made for an invalid request.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	model := ParseModel(string(req.Model))
	format := ParseFormat(string(req.Format))

	locator, resp, err := o.remote.Analyze(ctx, docintel.AnalyzeRequest{
		ModelID:      model.RemoteID(),
		OutputFormat: string(format),
		Pages:        req.Pages,
		URLSource:    req.Source.URL,
		Base64Source: req.Source.Base64,
	})
	switch {
	case errors.Is(err, docintel.ErrMissingLocator):
		metrics.IncUpstreamError()
		return nil, &UpstreamError{Code: CodeMissingOperationLocation, Err: err}
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.IncUpstreamError()
		return nil, &UpstreamError{Code: CodeAnalyzeFailed, Err: err}
	case resp.StatusCode != http.StatusAccepted:
		metrics.IncUpstreamError()
		telemetry.Warn("analysis.submit.rejected", map[string]any{
			"request_id":      requestIDFromContext(ctx),
			"upstream_status": resp.StatusCode,
			"model":           model.RemoteID(),
		})
		return nil, &UpstreamError{Code: CodeAnalyzeFailed, Status: resp.StatusCode, Details: submitDetails(resp.Body)}
	}

	job := &Job{
		Handle:      locator,
		OperationID: OperationIDFromLocator(locator),
		Model:       model,
		Format:      format,
		State:       StateSubmitted,
	}
	metrics.IncAnalysisSubmitted()
	telemetry.Info("analysis.submitted", jobFields(ctx, job))
	return job, nil
}

// Resume rebuilds a job so polling can continue in a later request. id is
// either a compact operation id, from which the result locator is
// synthesized, or a full locator on the configured endpoint, which is used
// verbatim. Any other absolute URL is rejected with ErrForeignLocator.
func (o *Orchestrator) Resume(model ModelID, id string) (*Job, error) {
	model = ParseModel(string(model))
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	job := &Job{
		Model:  model,
		Format: FormatMarkdown,
		State:  StateSubmitted,
	}
	if isAbsoluteURL(id) {
		if !o.remote.OwnsLocator(id) {
			return nil, ErrForeignLocator
		}
		job.Handle = id
		job.OperationID = OperationIDFromLocator(id)
		return job, nil
	}
	job.Handle = o.remote.ResultLocator(model.RemoteID(), id)
	job.OperationID = id
	return job, nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Poll drives job to a terminal state. Running out of attempts yields
// StateTimedOut rather than an error; an unexpected poll status is returned
// as *UpstreamError together with the job.
func (o *Orchestrator) Poll(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("poll: nil job")
	}
	if job.State.Terminal() {
		return job, nil
	}

	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.interval); err != nil {
				return job, err
			}
		}
		job.Attempts++

		resp, err := o.remote.GetOperation(ctx, job.Handle)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return job, ctxErr
			}
			metrics.IncUpstreamError()
			return job, &UpstreamError{Code: CodeResultFetchFailed, Err: err}
		}

		telemetry.Debug("analysis.poll", mergeFields(jobFields(ctx, job), map[string]any{
			"upstream_status": resp.StatusCode,
		}))

		switch {
		case resp.StatusCode == http.StatusNotFound && job.Attempts <= o.notFoundGrace:
			// The operation may not have propagated yet.
			continue
		case resp.StatusCode == http.StatusNotFound:
			job.State = StateNotFound
			job.Payload = resp.Body
			o.finish(ctx, job)
			return job, nil
		case resp.StatusCode != http.StatusOK:
			metrics.IncUpstreamError()
			job.Payload = resp.Body
			return job, &UpstreamError{Code: CodeResultFetchFailed, Status: resp.StatusCode, Details: resp.Body}
		}

		applyStatus(job, resp.Body)
		if job.State.Terminal() {
			o.finish(ctx, job)
			return job, nil
		}
	}

	job.State = StateTimedOut
	o.finish(ctx, job)
	return job, nil
}

// Run submits and polls to completion.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Job, error) {
	job, err := o.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Poll(ctx, job)
}

// Content fetches extracted content by id through the getContent route.
func (o *Orchestrator) Content(ctx context.Context, id string) (*docintel.Response, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	resp, err := o.remote.GetContent(ctx, id)
	if err != nil {
		metrics.IncUpstreamError()
		return nil, &UpstreamError{Code: CodeContentFetchFailed, Err: err}
	}
	return resp, nil
}

func applyStatus(job *Job, body json.RawMessage) {
	st := docintel.ParseOperationStatus(body)
	job.RemoteStatus = st.Status
	job.Payload = body

	switch st.Status {
	case docintel.StatusSucceeded:
		job.State = StateSucceeded
		res := &Result{Raw: body}
		if st.AnalyzeResult != nil {
			res.Content = st.AnalyzeResult.Content
			res.Pages = st.AnalyzeResult.Pages
			if f := strings.TrimSpace(st.AnalyzeResult.ContentFormat); f != "" {
				job.Format = ParseFormat(f)
			}
		}
		job.Result = res
	case docintel.StatusFailed:
		job.State = StateFailed
	case docintel.StatusCanceled:
		job.State = StateCanceled
	default:
		job.State = StateRunning
	}
}

func (o *Orchestrator) finish(ctx context.Context, job *Job) {
	metrics.ObservePollAttempts(job.Attempts)
	switch job.State {
	case StateSucceeded:
		metrics.IncAnalysisSucceeded()
	case StateFailed, StateCanceled:
		metrics.IncAnalysisFailed()
	case StateNotFound:
		metrics.IncAnalysisNotFound()
	case StateTimedOut:
		metrics.IncAnalysisTimedOut()
	}
	telemetry.Info("analysis.terminal", jobFields(ctx, job))
}

// OperationIDFromLocator returns the path segment after /analyzeResults/ up to
// the next '/' or '?'. Without that segment the whole locator is the id.
func OperationIDFromLocator(locator string) string {
	idx := strings.Index(locator, resultsPathSegment)
	if idx < 0 {
		return locator
	}
	rest := locator[idx+len(resultsPathSegment):]
	if end := strings.IndexAny(rest, "/?"); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return locator
	}
	return rest
}

// submitDetails re-keys the client's raw text wrapper as a message.
func submitDetails(body json.RawMessage) json.RawMessage {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped) == 1 {
		if raw, ok := wrapped["raw"]; ok {
			out, _ := json.Marshal(map[string]json.RawMessage{"message": raw})
			return out
		}
	}
	return body
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func jobFields(ctx context.Context, job *Job) map[string]any {
	return map[string]any{
		"request_id":    requestIDFromContext(ctx),
		"operation_id":  job.OperationID,
		"model":         job.Model.RemoteID(),
		"state":         string(job.State),
		"remote_status": job.RemoteStatus,
		"attempts":      job.Attempts,
	}
}

func mergeFields(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
