package health

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/schoolctl/internal/storage"
)

type brokenStorage struct{ storage.Storage }

func (brokenStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, stderrors.New("disk on fire")
}

func fixed(name string, status Status) Checker {
	return CheckFunc{Label: name, Fn: func(context.Context) *Result {
		return newResult(status, name)
	}}
}

func TestManagerKeepsRegistrationOrder(t *testing.T) {
	m := NewManager(fixed("b", StatusHealthy), fixed("a", StatusDegraded))
	m.Add(fixed("c", StatusHealthy))

	reports := m.Check(context.Background())
	require.Len(t, reports, 3)
	assert.Equal(t, []string{"b", "a", "c"}, m.Names())
	for i, name := range m.Names() {
		assert.Equal(t, name, reports[i].Name)
	}
	assert.Equal(t, StatusDegraded, Overall(reports))
}

func TestManagerTimeout(t *testing.T) {
	slow := CheckFunc{Label: "slow", Fn: func(ctx context.Context) *Result {
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return Healthy("finished")
	}}
	reports := NewManager(slow).WithTimeout(20 * time.Millisecond).Check(context.Background())

	assert.Equal(t, StatusUnhealthy, reports[0].Status)
	assert.Contains(t, reports[0].Message, "timed out")
}

func TestManagerNilResult(t *testing.T) {
	nilCheck := CheckFunc{Label: "nil", Fn: func(context.Context) *Result { return nil }}
	reports := NewManager(nilCheck).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, reports[0].Status)
}

func TestOverall(t *testing.T) {
	assert.Equal(t, StatusHealthy, Overall(nil))
	assert.Equal(t, StatusUnhealthy, Overall([]Report{
		{Name: "a", Result: *Degraded("x")},
		{Name: "b", Result: *Unhealthy("y")},
	}))
	assert.Equal(t, "✓", StatusHealthy.Symbol())
	assert.Equal(t, "✗", StatusUnhealthy.Symbol())
}

func TestAPIChecker(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewAPIChecker(srv.URL, nil)
	assert.Equal(t, "api", c.Name())

	result := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, http.StatusNotFound, result.Details["status"])

	status = http.StatusBadGateway
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	srv.Close()
	result = c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Details, "error")
}

func TestStorageChecker(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Set(ctx, storage.KeyToken, "t"))

	result := NewStorageChecker("memory", mem).Check(ctx)
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, true, result.Details["token"])

	result = NewStorageChecker("file", brokenStorage{}).Check(ctx)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "disk on fire", result.Details["error"])
}
