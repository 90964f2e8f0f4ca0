package docintel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL+"/", KeyAuth{Key: "test-key"})
	require.NoError(t, err)
	return c
}

func TestAnalyzeSendsURLSource(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/documentintelligence/documentModels/prebuilt-layout:analyze", r.URL.Path)
		assert.Equal(t, "2024-11-30", r.URL.Query().Get("api-version"))
		assert.Equal(t, "markdown", r.URL.Query().Get("outputContentFormat"))
		assert.Equal(t, "1-3", r.URL.Query().Get("pages"))
		assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Operation-Location", "https://svc/documentintelligence/documentModels/prebuilt-layout/analyzeResults/op-1?api-version=2024-11-30")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	locator, resp, err := c.Analyze(context.Background(), AnalyzeRequest{
		ModelID:      "prebuilt-layout",
		OutputFormat: "markdown",
		Pages:        "1-3",
		URLSource:    "https://files.example/doc.pdf",
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "https://svc/documentintelligence/documentModels/prebuilt-layout/analyzeResults/op-1?api-version=2024-11-30", locator)
	assert.Equal(t, map[string]any{"urlSource": "https://files.example/doc.pdf"}, gotBody)
}

func TestAnalyzeOmitsEmptyPages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["pages"]
		assert.False(t, present)
		w.Header().Set("Operation-Location", "loc")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, _, err := c.Analyze(context.Background(), AnalyzeRequest{ModelID: "prebuilt-read", OutputFormat: "text", Base64Source: "QUJD"})
	require.NoError(t, err)
}

func TestAnalyzeNonAcceptedReturnsResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401","message":"Access denied"}}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	locator, resp, err := c.Analyze(context.Background(), AnalyzeRequest{ModelID: "prebuilt-layout", OutputFormat: "markdown", URLSource: "u"})
	require.NoError(t, err)
	assert.Empty(t, locator)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":{"code":"401","message":"Access denied"}}`, string(resp.Body))
}

func TestAnalyzeMissingLocator(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, _, err := c.Analyze(context.Background(), AnalyzeRequest{ModelID: "prebuilt-layout", OutputFormat: "markdown", URLSource: "u"})
	assert.ErrorIs(t, err, ErrMissingLocator)
}

func TestGetOperationWrapsNonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custom/locator", r.URL.Path)
		assert.Equal(t, "v", r.URL.Query().Get("x"))
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	resp, err := c.GetOperation(context.Background(), ts.URL+"/custom/locator?x=v")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.JSONEq(t, `{"raw":"upstream exploded"}`, string(resp.Body))
}

func TestGetContentAddressesByID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documentintelligence/getContent/abc 1", r.URL.Path)
		assert.Equal(t, "2024-11-30", r.URL.Query().Get("api-version"))
		_, _ = w.Write([]byte(`{"content":"hi"}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	resp, err := c.GetContent(context.Background(), "abc 1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"content":"hi"}`, string(resp.Body))
}

func TestResultLocator(t *testing.T) {
	c, err := NewClient("https://svc.example", KeyAuth{Key: "k"}, WithAPIVersion("2024-02-29-preview"))
	require.NoError(t, err)
	assert.Equal(t,
		"https://svc.example/documentintelligence/documentModels/prebuilt-read/analyzeResults/op-9?api-version=2024-02-29-preview",
		c.ResultLocator("prebuilt-read", "op-9"))
}

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(" ", KeyAuth{Key: "k"})
	assert.Error(t, err)
	_, err = NewClient("https://svc", nil)
	assert.Error(t, err)
}

func TestTokenAuthSetsBearer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Ocp-Apim-Subscription-Key"))
		_, _ = w.Write([]byte(`{"status":"running"}`))
	}))
	defer ts.Close()

	auth := &TokenAuth{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123", TokenType: "Bearer"})}
	c, err := NewClient(ts.URL, auth)
	require.NoError(t, err)
	resp, err := c.GetOperation(context.Background(), ts.URL+"/op")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseOperationStatus(t *testing.T) {
	st := ParseOperationStatus(json.RawMessage(`{"status":"succeeded","analyzeResult":{"content":"hello","pages":[{"pageNumber":1}]}}`))
	assert.Equal(t, StatusSucceeded, st.Status)
	require.NotNil(t, st.AnalyzeResult)
	require.NotNil(t, st.AnalyzeResult.Content)
	assert.Equal(t, "hello", *st.AnalyzeResult.Content)
	assert.JSONEq(t, `[{"pageNumber":1}]`, string(st.AnalyzeResult.Pages))

	st = ParseOperationStatus(json.RawMessage(`{"status":"succeeded","analyzeResult":{"pages":null}}`))
	require.NotNil(t, st.AnalyzeResult)
	assert.Nil(t, st.AnalyzeResult.Content)
	assert.Nil(t, st.AnalyzeResult.Pages)

	st = ParseOperationStatus(json.RawMessage(`{"raw":"oops"}`))
	assert.Empty(t, st.Status)
}

func TestOwnsLocator(t *testing.T) {
	c, err := NewClient("https://di.example.com/", KeyAuth{Key: "k"})
	require.NoError(t, err)

	cases := []struct {
		locator string
		want    bool
	}{
		{"https://di.example.com/documentintelligence/operations/op-9?api-version=2024-11-30", true},
		{"https://DI.example.com/documentintelligence/documentModels/prebuilt-read/analyzeResults/op-1?api-version=2024-11-30", true},
		{"http://di.example.com/documentintelligence/operations/op-9", false},
		{"https://evil.example.com/documentintelligence/operations/op-9", false},
		{"https://di.example.com.evil.example/documentintelligence/operations/op-9", false},
		{"https://di.example.com/other/op-9", false},
		{"op-9", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.OwnsLocator(tc.locator), tc.locator)
	}
}
