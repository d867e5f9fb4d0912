package vector_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"webrag/internal/vector"
)

type fakeSchemaClient struct {
	existing  *models.Class
	existsErr error
	created   *models.Class
	added     []*models.Property
}

func (f *fakeSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	return f.existing != nil, f.existsErr
}

func (f *fakeSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	f.created = class
	return nil
}

func (f *fakeSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return f.existing, nil
}

func (f *fakeSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	f.added = append(f.added, property)
	return nil
}

func TestEnsureSchema(t *testing.T) {
	t.Run("Creates class", func(t *testing.T) {
		client := &fakeSchemaClient{}
		require.NoError(t, vector.EnsureSchema(context.Background(), client))

		require.NotNil(t, client.created)
		assert.Equal(t, vector.ClassName, client.created.Class)
		assert.Equal(t, "none", client.created.Vectorizer)
		assert.Equal(t, map[string]interface{}{"distance": "l2-squared"}, client.created.VectorIndexConfig)

		var url *models.Property
		for _, p := range client.created.Properties {
			if p.Name == vector.PropURL {
				url = p
			}
		}
		require.NotNil(t, url)
		assert.Equal(t, "field", url.Tokenization)
	})

	t.Run("Adds missing properties", func(t *testing.T) {
		client := &fakeSchemaClient{existing: &models.Class{
			Class: vector.ClassName,
			Properties: []*models.Property{
				{Name: vector.PropContent, DataType: []string{"text"}},
				{Name: vector.PropURL, DataType: []string{"text"}},
			},
		}}
		require.NoError(t, vector.EnsureSchema(context.Background(), client))

		assert.Nil(t, client.created)
		var names []string
		for _, p := range client.added {
			names = append(names, p.Name)
		}
		assert.ElementsMatch(t, []string{vector.PropChunkIndex, vector.PropTitle}, names)
	})

	t.Run("Existence check fails", func(t *testing.T) {
		client := &fakeSchemaClient{existsErr: errors.New("connection refused")}
		assert.Error(t, vector.EnsureSchema(context.Background(), client))
	})
}

func TestSchemaAdapter(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/meta":
			w.Write([]byte(`{"version": "1.19.0"}`))
		case r.URL.Path == "/v1/schema/WebChunk" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(&models.Class{Class: vector.ClassName})
		case r.URL.Path == "/v1/schema" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/v1/schema/WebChunk/properties" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client, err := weaviate.NewClient(weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"})
	require.NoError(t, err)
	adapter := vector.NewSchemaAdapter(client)
	ctx := context.Background()

	exists, err := adapter.ClassExists(ctx, vector.ClassName)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = adapter.ClassExists(ctx, "Other")
	assert.NoError(t, err)
	assert.False(t, exists)

	class, err := adapter.GetClass(ctx, vector.ClassName)
	assert.NoError(t, err)
	assert.Equal(t, vector.ClassName, class.Class)

	assert.NoError(t, adapter.CreateClass(ctx, &models.Class{Class: "New"}))
	assert.NoError(t, adapter.AddProperty(ctx, vector.ClassName, &models.Property{Name: "p", DataType: []string{"text"}}))
}
