package lambda

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
)

// Handler proxies API Gateway HTTP API (payload v2) events into the
// access router.
type Handler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

func NewHandler(e *echo.Echo) Handler {
	adapter := echoadapter.NewV2(e)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}
}

// InRuntime reports whether the process was started by the Lambda runtime.
func InRuntime() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
}
