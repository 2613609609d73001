package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domrepo "TickChart/internal/domain/repository"
	"TickChart/internal/usecase"
)

const toolPayload = `{"identifier":"005930","count":1,"items":[{"date":"2024-03-04","timeOfDay":"09:30:00","identifier":"005930","price":100,"volume":10}]}`

func TestHTTPToolRequester_SendsToolCall(t *testing.T) {
	var got toolCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"structuredContent":` + toolPayload + `}`))
	}))
	defer srv.Close()

	r := NewHTTPToolRequester(srv.URL, "get_intraday_ticks", time.Second, nil)
	p, err := r.RequestData(context.Background(), domrepo.RequestArgs{Identifier: "005930"})
	require.NoError(t, err)

	assert.Equal(t, "get_intraday_ticks", got.Name)
	assert.Equal(t, "005930", got.Arguments["identifier"])
	require.Len(t, p.Items, 1)
	assert.Equal(t, 100.0, p.Items[0].Price.Value)
}

func TestHTTPToolRequester_NoArguments(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(toolPayload))
	}))
	defer srv.Close()

	_, err := NewHTTPToolRequester(srv.URL, "t", time.Second, nil).RequestData(context.Background(), domrepo.RequestArgs{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw["arguments"]))
}

func TestHTTPToolRequester_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"isError":true,"content":[{"type":"text","text":"unknown symbol"}]}`))
	}))
	defer srv.Close()

	_, err := NewHTTPToolRequester(srv.URL+"/down", "t", time.Second, nil).RequestData(context.Background(), domrepo.RequestArgs{})
	assert.ErrorContains(t, err, "502")

	_, err = NewHTTPToolRequester(srv.URL, "t", time.Second, nil).RequestData(context.Background(), domrepo.RequestArgs{})
	assert.ErrorIs(t, err, usecase.ErrNoPayload)

	_, err = NewHTTPToolRequester("", "t", time.Second, nil).RequestData(context.Background(), domrepo.RequestArgs{})
	assert.Error(t, err)
}
