package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportflow/supportflow/types"
	"github.com/supportflow/supportflow/websearch"
)

type stubWebProvider struct {
	gotQuery string
	gotOpts  websearch.Options
	results  []websearch.Result
	err      error
}

func (s *stubWebProvider) Search(ctx context.Context, query string, opts websearch.Options) ([]websearch.Result, error) {
	s.gotQuery = query
	s.gotOpts = opts
	return s.results, s.err
}

func (s *stubWebProvider) Name() string { return "stub" }

func TestWebSearchAgent(t *testing.T) {
	provider := &stubWebProvider{results: []websearch.Result{
		{Title: "Reset Guide", URL: "https://example.com/reset", Snippet: "Step by step."},
		{Title: "Scored", URL: "https://example.com/scored", Snippet: "Has a score.", Score: 0.95},
	}}
	agent := NewWebSearchAgent(provider, nil, nil)

	evidence, err := agent.Search(context.Background(), "why is the fan loud", 2)
	require.NoError(t, err)
	require.Len(t, evidence, 2)

	assert.Equal(t, types.OriginWeb, evidence[0].Origin)
	assert.Equal(t, "https://example.com/reset", evidence[0].Source.ID)
	assert.Equal(t, "https://example.com/reset", evidence[0].Source.Location)
	assert.InDelta(t, 0.8, evidence[0].Score, 1e-9, "unscored results get the default web score")
	assert.InDelta(t, 0.95, evidence[1].Score, 1e-9, "provider scores are preserved")
	assert.Equal(t, 2, provider.gotOpts.MaxResults)
}

func TestWebSearchAgentShapesQuery(t *testing.T) {
	provider := &stubWebProvider{}
	agent := NewWebSearchAgent(provider, []string{"acme"}, nil)

	_, err := agent.Search(context.Background(), "Acme router dropping packets", 2)
	require.NoError(t, err)
	assert.Equal(t, "Acme router dropping packets official documentation guide", provider.gotQuery)
}

func TestWebSearchAgentCapsResults(t *testing.T) {
	provider := &stubWebProvider{results: []websearch.Result{
		{URL: "https://a"}, {URL: "https://b"}, {URL: "https://c"},
	}}
	agent := NewWebSearchAgent(provider, nil, nil)

	evidence, err := agent.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, evidence, 2)
}

func TestWebSearchAgentProviderFailure(t *testing.T) {
	agent := NewWebSearchAgent(&stubWebProvider{err: errors.New("quota exceeded")}, nil, nil)

	_, err := agent.Search(context.Background(), "q", 2)
	require.Error(t, err)

	var coded *types.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, types.ErrProviderUnavailable, coded.Code)
}

func TestWebSearchAgentEmptyQuestion(t *testing.T) {
	agent := NewWebSearchAgent(&stubWebProvider{}, nil, nil)

	evidence, err := agent.Search(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Empty(t, evidence)
}
