package reasoning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxReplyBytes = 1 << 20

// HTTPBackend posts requests to {BaseURL}/{op}.
type HTTPBackend struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (b *HTTPBackend) Call(ctx context.Context, op Operation, request []byte) ([]byte, error) {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimRight(b.BaseURL, "/") + "/" + string(op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(request))
	if err != nil {
		return nil, &ExternalError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(b.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, &ExternalError{Op: op, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &ExternalError{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBytes))
	if err != nil {
		return nil, &ExternalError{Op: op, Err: err}
	}
	return body, nil
}
