package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jobs/taskengine/internal/biz/task"
)

// HTTPInput http_get/http_post/http_put/http_delete的参数
type HTTPInput struct {
	Url     string            `json:"Url"`
	Headers map[string]string `json:"Headers"`
	Body    string            `json:"Body"`
}

// maxResponseBytes 响应体截断长度
const maxResponseBytes = 1 << 20

var httpMethods = map[task.Action]string{
	task.ActionHTTPGet:    http.MethodGet,
	task.ActionHTTPPost:   http.MethodPost,
	task.ActionHTTPPut:    http.MethodPut,
	task.ActionHTTPDelete: http.MethodDelete,
}

type HTTPExecutor struct {
	client *http.Client
}

func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPExecutor{client: client}
}

// Execute 返回响应体文本，非2xx状态码同样作为输出交给期望匹配判断
func (e *HTTPExecutor) Execute(ctx context.Context, action task.Action, input string) (string, error) {
	method, ok := httpMethods[action]
	if !ok {
		return "", fmt.Errorf("http executor does not support action %q", action)
	}

	var in HTTPInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("failed to parse http input: %w", err)
	}
	if in.Url == "" {
		return "", fmt.Errorf("http input requires Url")
	}

	var body io.Reader
	if in.Body != "" {
		body = strings.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, in.Url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}
	if in.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", in.Url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return buf.String(), fmt.Errorf("%s returned status %d", in.Url, resp.StatusCode)
	}
	return buf.String(), nil
}
