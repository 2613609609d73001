package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	"TickChart/internal/service/ratelimit"
	"TickChart/internal/usecase"
	xlogger "TickChart/pkg/logger"
)

const initialResult = `{"structuredContent":{"identifier":"005930","count":3,"items":[
	{"date":"2024-03-04","timeOfDay":"09:30:00","identifier":"005930","price":100,"volume":10},
	{"date":"2024-03-04","timeOfDay":"09:31:30","identifier":"005930","price":101,"volume":5},
	{"date":"2024-03-04","timeOfDay":"09:35:00","identifier":"005930","price":99,"volume":7}
]}}`

var kst = time.FixedZone("KST", 9*3600)

func at(clock string) int64 {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", "2024-03-04 "+clock, kst)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

// stubRequester answers with payload/err; when gate is non-nil every call
// blocks until the gate is closed.
type stubRequester struct {
	mu      sync.Mutex
	payload *models.RawPayload
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (s *stubRequester) RequestData(ctx context.Context, _ domrepo.RequestArgs) (*models.RawPayload, error) {
	s.mu.Lock()
	gate, payload, err := s.gate, s.payload, s.err
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return payload, err
}

type nopScheduler struct{}

func (nopScheduler) Every(time.Duration, func()) (func(), error) { return func() {}, nil }

type fixture struct {
	e       *echo.Echo
	session *usecase.ChartSession
	req     *stubRequester
	hub     *Hub
}

func newFixture(t *testing.T, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	req := &stubRequester{}
	session := usecase.NewChartSession(req, nopScheduler{}, domrepo.TF1m, usecase.WithLocation(kst))
	t.Cleanup(func() { _ = session.Close() })

	hub := NewHub(session, xlogger.NewNop(), []string{"*"}, nil)
	t.Cleanup(hub.Close)
	session.Subscribe(hub.Broadcast)

	e := echo.New()
	NewChartHandler(xlogger.NewNop(), session, usecase.NewCandlesUseCase(session), limiter, hub).RegisterRoutes(e)
	return &fixture{e: e, session: session, req: req, hub: hub}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, r)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) models.ViewSnapshot {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var snap models.ViewSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return snap
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var errs []struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}
