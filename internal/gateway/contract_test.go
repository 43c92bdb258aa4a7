package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/log"
	"github.com/felixgeelhaar/schoolctl/internal/navigate"
	"github.com/felixgeelhaar/schoolctl/internal/notify"
	"github.com/felixgeelhaar/schoolctl/internal/storage"
)

const studentsContract = `openapi: 3.0.3
info:
  title: School API
  version: "1.0"
paths:
  /students/{id}:
    get:
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: integer
      responses:
        "200":
          description: A student
          content:
            application/json:
              schema:
                type: object
                required: [success, data]
                properties:
                  success:
                    type: boolean
                  data:
                    type: object
                    required: [id, name]
                    properties:
                      id:
                        type: integer
                      name:
                        type: string
`

func writeContract(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(studentsContract), 0600))
	return path
}

func TestLoadContract(t *testing.T) {
	c, err := LoadContract(context.Background(), writeContract(t), "http://localhost:5000/api")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /students/{id}"}, c.Operations())

	_, err = LoadContract(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeGatewayContract))
}

func TestContractValidation(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		wantErr bool
	}{
		{"conforming", "/students/1", `{"success":true,"data":{"id":1,"name":"Ada"}}`, false},
		{"missing field", "/students/1", `{"success":true,"data":{"id":1}}`, true},
		{"undocumented", "/fees", `{"anything":true}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newJSONServer(t, tt.body)
			contract, err := LoadContract(context.Background(), writeContract(t), server+"/api")
			require.NoError(t, err)

			notes := notify.NewRecorder()
			c := New(server+"/api", storage.NewMemory(), notes, navigate.NewRecorder(),
				WithLogger(log.Discard()), WithContract(contract))

			_, err = c.Get(context.Background(), tt.path, Options{}, JSON)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeGatewayContract))
				assert.Len(t, notes.OfKind(notify.KindError), 1)
				return
			}
			require.NoError(t, err)
		})
	}
}

func newJSONServer(t *testing.T, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}
