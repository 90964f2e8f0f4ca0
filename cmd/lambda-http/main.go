package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
//
// API Gateway ends integrations after 30s, so POLL_MAX_ATTEMPTS defaults to 12
// here. Long documents should use POST /api/analyses and poll
// GET /api/analyses/status instead of the blocking /api/extract.

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"docextract-backend/internal/bootstrap"
	"docextract-backend/internal/shared/config"
	"docextract-backend/internal/shared/server/respond"
	"docextract-backend/internal/shared/telemetry"
)

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

// initApp runs once per container; warm invocations reuse the router.
func initApp() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap.failed", map[string]any{
			"err":        initErr.Error(),
			"request_id": req.RequestContext.RequestID,
		})
		return errorResponse("bootstrap_failed", "bootstrap failed"), nil
	}
	if ginLambda == nil {
		return errorResponse("internal_error", "router not initialized"), nil
	}
	return ginLambda.ProxyWithContext(ctx, withSourceIP(req))
}

// withSourceIP replaces any client-sent copy of the source IP header with the
// address API Gateway observed.
func withSourceIP(req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPRequest {
	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		if !strings.EqualFold(k, config.LambdaSourceIPHeader) {
			headers[k] = v
		}
	}
	if ip := strings.TrimSpace(req.RequestContext.HTTP.SourceIP); ip != "" {
		headers[strings.ToLower(config.LambdaSourceIPHeader)] = ip
	}
	req.Headers = headers
	return req
}

func errorResponse(code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{
		Error: respond.ErrorBody{Code: code, Message: message},
	})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	lambda.Start(handler)
}
