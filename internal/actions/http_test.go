package actions

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobs/taskengine/internal/biz/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream"))
		default:
			_, _ = w.Write([]byte(r.Method + " " + r.Header.Get("X-Token") + " " + string(body)))
		}
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.Client())
	ctx := context.Background()

	out, err := e.Execute(ctx, task.ActionHTTPPost, `{"Url":"`+srv.URL+`/x","Headers":{"X-Token":"t"},"Body":"{\"a\":1}"}`)
	require.NoError(t, err)
	assert.Equal(t, `POST t {"a":1}`, out)

	out, err = e.Execute(ctx, task.ActionHTTPDelete, `{"Url":"`+srv.URL+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "DELETE  ", out)

	out, err = e.Execute(ctx, task.ActionHTTPGet, `{"Url":"`+srv.URL+`/fail"}`)
	assert.Error(t, err)
	assert.Equal(t, "upstream", out)

	_, err = e.Execute(ctx, task.ActionVMPowerOn, `{"Url":"`+srv.URL+`"}`)
	assert.Error(t, err)
	_, err = e.Execute(ctx, task.ActionHTTPGet, `not json`)
	assert.Error(t, err)
	_, err = e.Execute(ctx, task.ActionHTTPGet, `{}`)
	assert.Error(t, err)
}

func TestHTTPExecutorHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPExecutor(srv.Client()).Execute(ctx, task.ActionHTTPGet, `{"Url":"`+srv.URL+`"}`)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
