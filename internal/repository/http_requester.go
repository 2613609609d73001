package repository

import (
	"context"
	"fmt"
	"time"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	"TickChart/internal/usecase"
	xhttp "TickChart/pkg/http"
	applogger "TickChart/pkg/logger"
)

// HTTPToolRequester fetches ticks by calling a tool endpoint over HTTP. The
// response may be a bare payload or a tool-call envelope.
type HTTPToolRequester struct {
	url      string
	toolName string
	client   *xhttp.Client
	l        *applogger.Logger
}

type toolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func NewHTTPToolRequester(url, toolName string, timeout time.Duration, l *applogger.Logger) *HTTPToolRequester {
	if l == nil {
		l = applogger.NewNop()
	}
	return &HTTPToolRequester{
		url:      url,
		toolName: toolName,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		l:        l,
	}
}

func (r *HTTPToolRequester) RequestData(ctx context.Context, args domrepo.RequestArgs) (*models.RawPayload, error) {
	if r.url == "" {
		return nil, fmt.Errorf("tool requester not configured")
	}
	call := toolCall{Name: r.toolName, Arguments: map[string]interface{}{}}
	if args.Identifier != "" {
		call.Arguments["identifier"] = args.Identifier.String()
	}

	var body []byte
	err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    r.url,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: call,
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", r.toolName, err)
	}

	payload, err := usecase.ExtractPayload(body)
	if err != nil {
		r.l.Warn("Tool response without payload",
			applogger.String("tool", r.toolName),
			applogger.Int("bytes", len(body)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("call %s: %w", r.toolName, err)
	}
	return payload, nil
}
