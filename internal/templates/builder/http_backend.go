package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// HTTPBackend submits builds to a remote build service
type HTTPBackend struct {
	baseURL        string
	callbackURL    string
	callbackSecret string
	httpClient     *http.Client
}

// NewHTTPBackend creates a new build service client
func NewHTTPBackend(baseURL, callbackURL, callbackSecret string) *HTTPBackend {
	return &HTTPBackend{
		baseURL:        strings.TrimRight(baseURL, "/"),
		callbackURL:    callbackURL,
		callbackSecret: callbackSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StartBuild posts the build job to {baseURL}/v1/builds. 201 and 202 mean
// the build was accepted.
func (c *HTTPBackend) StartBuild(ctx context.Context, t *domain.Template) error {
	jsonData, err := json.Marshal(NewJob(t, c.callbackURL, c.callbackSecret))
	if err != nil {
		return fmt.Errorf("failed to marshal build job: %w", err)
	}

	url := fmt.Sprintf("%s/v1/builds", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call build service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("build service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
