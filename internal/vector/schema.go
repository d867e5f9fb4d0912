package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	ClassName = "WebChunk"

	PropContent    = "content"
	PropURL        = "url"
	PropChunkIndex = "chunkIndex"
	PropTitle      = "title"
)

// Record is one stored chunk of an ingested page.
type Record struct {
	ContextURL string
	Text       string
	Title      string
	ChunkIndex int
	Vector     []float32
}

// SchemaClient is the subset of the Weaviate schema API used at startup.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func properties() []*models.Property {
	return []*models.Property{
		{Name: PropContent, DataType: []string{"text"}},
		// field tokenization makes Equal filters match the whole URL
		{Name: PropURL, DataType: []string{"text"}, Tokenization: "field"},
		{Name: PropChunkIndex, DataType: []string{"int"}},
		{Name: PropTitle, DataType: []string{"text"}},
	}
}

// EnsureSchema creates the chunk class, or adds properties missing from an existing one.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	props := properties()
	if !exists {
		return client.CreateClass(ctx, &models.Class{
			Class:             ClassName,
			Description:       "A text chunk of an ingested web page, partitioned by url",
			Vectorizer:        "none",
			VectorIndexConfig: map[string]interface{}{"distance": "l2-squared"},
			Properties:        props,
		})
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(class.Properties))
	for _, p := range class.Properties {
		have[p.Name] = true
	}
	for _, p := range props {
		if have[p.Name] {
			continue
		}
		if err := client.AddProperty(ctx, ClassName, p); err != nil {
			return err
		}
	}
	return nil
}

// SchemaAdapter implements SchemaClient on top of the Weaviate client.
type SchemaAdapter struct {
	client *weaviate.Client
}

func NewSchemaAdapter(client *weaviate.Client) *SchemaAdapter {
	return &SchemaAdapter{client: client}
}

func (a *SchemaAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *SchemaAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *SchemaAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *SchemaAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}
