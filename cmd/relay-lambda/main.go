package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/helenaexplora/explora-platform/cmd/mainconfig"
	"github.com/helenaexplora/explora-platform/internal/app/bootstrap"
	appconfig "github.com/helenaexplora/explora-platform/internal/config"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	app, err := bootstrap.BuildApp(context.Background(), cfg, logger, bootstrap.AppOptions{
		LoadAWS: mainconfig.Loader(cfg),
	})
	if err != nil {
		panic(err)
	}

	adapter := httpadapter.NewV2(app.Handler)
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, adapter, evt)
	})
}

// handle serves an API Gateway HTTP event through the relay router. Chat
// streams are buffered into one response body by the adapter.
func handle(ctx context.Context, adapter *httpadapter.HandlerAdapterV2, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if evt.IsBase64Encoded {
		if _, err := base64.StdEncoding.DecodeString(evt.Body); err != nil {
			return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
		}
	}
	return adapter.ProxyWithContext(ctx, withForwardedFor(evt))
}

// withForwardedFor copies the caller address API Gateway reports in the
// request context into X-Forwarded-For, which the relays key rate limits on.
func withForwardedFor(evt events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPRequest {
	ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP)
	if ip == "" {
		return evt
	}
	headers := make(map[string]string, len(evt.Headers)+1)
	for key, value := range evt.Headers {
		if strings.EqualFold(key, "X-Forwarded-For") && strings.TrimSpace(value) != "" {
			return evt
		}
		headers[key] = value
	}
	headers["x-forwarded-for"] = ip
	evt.Headers = headers
	return evt
}
