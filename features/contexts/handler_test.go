package contexts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"webrag/features/contexts"
	"webrag/internal/adapter/memory"
	"webrag/internal/vector"
)

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Forget(ctx context.Context, u string) (bool, error) {
	args := m.Called(ctx, u)
	return args.Bool(0), args.Error(1)
}

type failingStore struct{}

func (failingStore) ListContexts(ctx context.Context) ([]string, error) {
	return nil, errors.New("weaviate down")
}

func (failingStore) DeleteContext(ctx context.Context, contextURL string) (int, error) {
	return 0, errors.New("weaviate down")
}

func seeded(t *testing.T) *memory.Store {
	s := memory.NewStore()
	_, err := s.Insert(context.Background(), []vector.Record{
		{ContextURL: "https://b.dev", Text: "b", Vector: []float32{1}},
		{ContextURL: "https://a.dev", Text: "a", Vector: []float32{1}},
		{ContextURL: "https://a.dev", Text: "a2", ChunkIndex: 1, Vector: []float32{2}},
	})
	require.NoError(t, err)
	return s
}

func deleteRequest(u string) *http.Request {
	return httptest.NewRequest(http.MethodDelete, "/api/v1/contexts?url="+url.QueryEscape(u), nil)
}

func TestHandler_List(t *testing.T) {
	t.Run("Sorted unique", func(t *testing.T) {
		w := httptest.NewRecorder()
		contexts.NewHandler(seeded(t), nil).List(w, httptest.NewRequest(http.MethodGet, "/api/v1/contexts", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var urls []string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &urls))
		assert.Equal(t, []string{"https://a.dev", "https://b.dev"}, urls)
	})

	t.Run("Empty", func(t *testing.T) {
		w := httptest.NewRecorder()
		contexts.NewHandler(memory.NewStore(), nil).List(w, httptest.NewRequest(http.MethodGet, "/api/v1/contexts", nil))

		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("Store error", func(t *testing.T) {
		w := httptest.NewRecorder()
		contexts.NewHandler(failingStore{}, nil).List(w, httptest.NewRequest(http.MethodGet, "/api/v1/contexts", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		known      bool
		wantStatus int
	}{
		{"Deletes partition", "https://a.dev", true, http.StatusOK},
		{"Registry only", "https://queued.dev", true, http.StatusOK},
		{"Unknown context", "https://nope.dev", false, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seeded(t)
			reg := new(MockRegistry)
			reg.On("Forget", mock.Anything, tt.url).Return(tt.known, nil)

			w := httptest.NewRecorder()
			contexts.NewHandler(store, reg).Delete(w, deleteRequest(tt.url))

			assert.Equal(t, tt.wantStatus, w.Code)
			reg.AssertExpectations(t)

			remaining, err := store.ListContexts(context.Background())
			require.NoError(t, err)
			assert.NotContains(t, remaining, tt.url)
		})
	}

	t.Run("Missing url", func(t *testing.T) {
		w := httptest.NewRecorder()
		contexts.NewHandler(seeded(t), nil).Delete(w, httptest.NewRequest(http.MethodDelete, "/api/v1/contexts", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Store error", func(t *testing.T) {
		w := httptest.NewRecorder()
		contexts.NewHandler(failingStore{}, nil).Delete(w, deleteRequest("https://a.dev"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("Registry error still reports partition", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("Forget", mock.Anything, "https://b.dev").Return(false, errors.New("db down"))

		w := httptest.NewRecorder()
		contexts.NewHandler(seeded(t), reg).Delete(w, deleteRequest("https://b.dev"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"url":"https://b.dev","deleted_chunks":1}}`, w.Body.String())
	})
}
