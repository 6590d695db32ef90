package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/ciel/gallery/application"
	"github.com/dfryer1193/ciel/gallery/persistence"
	sqlitedb "github.com/dfryer1193/ciel/shared/db/sqlite"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type testServer struct {
	router    *gin.Engine
	imagesDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	database := sqlitedb.NewSQLiteDB(&sqlitedb.SQLiteConfig{Path: filepath.Join(root, "index.db")})
	require.NoError(t, database.Connect())
	t.Cleanup(func() { database.Close() })

	imagesDir := filepath.Join(root, "images")
	files, err := persistence.NewLocalImageFiles(imagesDir)
	require.NoError(t, err)

	index := persistence.NewTagIndex(database.DB())
	lifecycle := application.NewLifecycleService(index, persistence.NewTransactor(database.DB()), files, nil, nil)
	t.Cleanup(func() { lifecycle.Close() })

	router := gin.New()
	NewApi(router, NewHandler(application.NewSearchService(index), lifecycle))

	return &testServer{router: router, imagesDir: imagesDir}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// upload acquires pngBytes through a multipart request and returns the id.
func (s *testServer) upload(t *testing.T) string {
	t.Helper()

	w := s.uploadBytes(t, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

// register uploads an image and registers it with tags.
func (s *testServer) register(t *testing.T, tags ...string) string {
	t.Helper()

	id := s.upload(t)
	w := s.do(t, http.MethodPut, "/images/v1/"+id, map[string]any{"tags": tags})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	return id
}
