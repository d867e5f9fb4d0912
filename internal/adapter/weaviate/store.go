package weaviate

import (
	"context"
	"fmt"
	"sort"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"webrag/internal/rag"
	"webrag/internal/vector"
)

// Store keeps page chunks in the Weaviate chunk class. Each context URL is a
// partition selected by an Equal filter on the url property.
type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func byURL(contextURL string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{vector.PropURL}).
		WithOperator(filters.Equal).
		WithValueString(contextURL)
}

func (s *Store) Insert(ctx context.Context, records []vector.Record) (int, error) {
	for i, r := range records {
		if len(r.Vector) == 0 {
			return i, fmt.Errorf("record %d of %s has no vector", r.ChunkIndex, r.ContextURL)
		}
		_, err := s.client.Data().Creator().
			WithClassName(vector.ClassName).
			WithProperties(map[string]interface{}{
				vector.PropContent:    r.Text,
				vector.PropURL:        r.ContextURL,
				vector.PropChunkIndex: r.ChunkIndex,
				vector.PropTitle:      r.Title,
			}).
			WithVector(r.Vector).
			Do(ctx)
		if err != nil {
			return i, fmt.Errorf("store chunk %d of %s: %w", r.ChunkIndex, r.ContextURL, err)
		}
	}
	return len(records), nil
}

// Search returns the topK nearest chunks of one partition, nearest first.
func (s *Store) Search(ctx context.Context, vec []float32, contextURL string, topK int) ([]rag.Chunk, error) {
	if topK <= 0 {
		return []rag.Chunk{}, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	fields := []graphql.Field{
		{Name: vector.PropContent},
		{Name: vector.PropURL},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(byURL(contextURL)).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	chunks := []rag.Chunk{}
	data, _ := res.Data["Get"].(map[string]interface{})
	rows, _ := data[vector.ClassName].([]interface{})
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		c := rag.Chunk{ContextURL: contextURL}
		if content, ok := props[vector.PropContent].(string); ok {
			c.Text = content
		}
		if url, ok := props[vector.PropURL].(string); ok {
			c.ContextURL = url
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				c.Distance = float32(d)
			}
		}
		chunks = append(chunks, c)
	}
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

// ListContexts returns the distinct url values stored in the class, sorted.
func (s *Store) ListContexts(ctx context.Context) ([]string, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithGroupBy(vector.PropURL).
		WithFields(graphql.Field{Name: "groupedBy", Fields: []graphql.Field{{Name: "value"}}}).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	contexts := []string{}
	data, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := data[vector.ClassName].([]interface{})
	for _, g := range groups {
		group, _ := g.(map[string]interface{})
		groupedBy, _ := group["groupedBy"].(map[string]interface{})
		if value, ok := groupedBy["value"].(string); ok && value != "" {
			contexts = append(contexts, value)
		}
	}
	sort.Strings(contexts)
	return contexts, nil
}

// DeleteContext removes every chunk of a partition and reports how many matched.
func (s *Store) DeleteContext(ctx context.Context, contextURL string) (int, error) {
	res, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(byURL(contextURL)).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if res == nil || res.Results == nil {
		return 0, nil
	}
	return int(res.Results.Matches), nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	data, _ := res.Data["Aggregate"].(map[string]interface{})
	rows, _ := data[vector.ClassName].([]interface{})
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}
