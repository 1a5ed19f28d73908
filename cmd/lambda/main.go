// Lambda entry point. Configuration comes from the same environment
// variables as the server (SLACK_WEBHOOK_URL, SHEET_ID, SOURCES_DIR, ...).
// Use REDIS_ADDR or NO_PERSIST on read-only filesystems.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/lysyi3m/press-relay/app/cfg"
	"github.com/lysyi3m/press-relay/app/pipeline"
)

type Event struct {
	WindowHours int  `json:"window_hours"`
	Refresh     bool `json:"refresh"`
}

type Response struct {
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Summary    *pipeline.Summary `json:"summary,omitempty"`
}

type RunnerInterface interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Summary, error)
}

// newHandler reports every run outcome in Response.StatusCode. Returning the
// error as well would make the runtime replace the body with an error object.
func newHandler(runner RunnerInterface) func(ctx context.Context, event Event) (Response, error) {
	return func(ctx context.Context, event Event) (Response, error) {
		summary, err := runner.Run(ctx, pipeline.Options{
			WindowHours: event.WindowHours,
			Refresh:     event.Refresh,
		})

		response := Response{
			StatusCode: pipeline.StatusCode(err),
			Message:    http.StatusText(pipeline.StatusCode(err)),
			Summary:    summary,
		}
		if err != nil {
			response.Message = err.Error()
			slog.Error("Run failed", "status", response.StatusCode, "error", err)
		}
		return response, nil
	}
}

func main() {
	appConfig, err := cfg.Load(nil)
	if err != nil || appConfig == nil {
		os.Exit(2)
	}

	slog.SetDefault(appConfig.NewLogger(os.Stderr))

	if err := appConfig.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	svc, err := pipeline.Setup(context.Background(), appConfig)
	if err != nil {
		slog.Error("Failed to set up pipeline", "error", err)
		os.Exit(1)
	}

	lambda.Start(newHandler(svc.Runner))
}
