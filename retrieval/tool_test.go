package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	results   []Result
	err       error
	lastQuery string
	lastTopK  int
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, topK int) ([]Result, error) {
	s.lastQuery = query
	s.lastTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestRetrieveToolReturnsResults(t *testing.T) {
	stub := &stubRetriever{results: []Result{
		{Text: "Go is a statically typed language.", Score: 0.91},
		{Text: "Goroutines are lightweight threads.", Score: 0.84},
	}}
	rt := NewRetrieveTool(stub, func(o *RetrieveToolOptions) { o.TopK = 2 })

	assert.Equal(t, "retrieve_context", rt.Name())

	out, err := rt.Execute(context.Background(), map[string]any{"query": "what is go"})
	require.NoError(t, err)

	results, ok := out.([]Result)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "Go is a statically typed language.", results[0].Text)
	assert.Equal(t, "what is go", stub.lastQuery)
	assert.Equal(t, 2, stub.lastTopK)
}

func TestRetrieveToolDegradesToEmptyOnFailure(t *testing.T) {
	stub := &stubRetriever{err: errors.New("connection refused")}
	rt := NewRetrieveTool(stub)

	out, err := rt.Execute(context.Background(), map[string]any{"query": "anything"})
	require.NoError(t, err)

	results, ok := out.([]Result)
	require.True(t, ok)
	assert.Empty(t, results)
}

func TestRetrieveToolNormalizesNilResults(t *testing.T) {
	stub := &stubRetriever{results: nil}
	rt := NewRetrieveTool(stub)

	out, err := rt.Execute(context.Background(), map[string]any{"query": "nothing indexed"})
	require.NoError(t, err)

	results, ok := out.([]Result)
	require.True(t, ok)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetrieveToolRejectsMissingQuery(t *testing.T) {
	rt := NewRetrieveTool(&stubRetriever{})

	_, err := rt.Execute(context.Background(), map[string]any{})
	require.Error(t, err)
}
