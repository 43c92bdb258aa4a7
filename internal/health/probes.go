package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/schoolctl/internal/storage"
)

// APIChecker sends an unauthenticated GET to the backend base URL. Any
// answer below 500 proves the backend is reachable; the session is never
// touched, so a 401 here does not log the user out.
type APIChecker struct {
	url    string
	client *http.Client
}

// NewAPIChecker probes url with client, or a 5s client when nil.
func NewAPIChecker(url string, client *http.Client) *APIChecker {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &APIChecker{url: url, client: client}
}

func (c *APIChecker) Name() string { return "api" }

func (c *APIChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Unhealthy("invalid API URL").WithDetail("url", c.url).WithDetail("error", err.Error())
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy("backend unreachable").WithDetail("url", c.url).WithDetail("error", err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	var result *Result
	if resp.StatusCode >= http.StatusInternalServerError {
		result = Degraded(fmt.Sprintf("backend answered %d", resp.StatusCode))
	} else {
		result = Healthy("backend reachable")
	}
	result.Latency = time.Since(start)
	return result.WithDetail("url", c.url).WithDetail("status", resp.StatusCode)
}

// StorageChecker reads the token key to prove the session storage works.
type StorageChecker struct {
	driver string
	store  storage.Storage
}

// NewStorageChecker labels st with its configured driver name.
func NewStorageChecker(driver string, st storage.Storage) *StorageChecker {
	return &StorageChecker{driver: driver, store: st}
}

func (c *StorageChecker) Name() string { return "storage" }

func (c *StorageChecker) Check(ctx context.Context) *Result {
	_, ok, err := c.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return Unhealthy(c.driver + " storage is not readable").
			WithDetail("driver", c.driver).
			WithDetail("error", err.Error())
	}
	return Healthy(c.driver + " storage readable").
		WithDetail("driver", c.driver).
		WithDetail("token", ok)
}
