package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

func TestParseQueryPlatformOperator(t *testing.T) {
	q := ParseQuery("platform:chatgpt hello")
	require.NotNil(t, q.Platform)
	assert.Equal(t, model.PlatformChatGPT, *q.Platform)
	assert.Equal(t, []string{"hello"}, q.Terms)
}

func TestParseQueryUnknownPlatformIgnored(t *testing.T) {
	q := ParseQuery("platform:bogus hello")
	assert.Nil(t, q.Platform)
	assert.Equal(t, []string{"hello"}, q.Terms)
}

func TestParseQueryFavoriteOperator(t *testing.T) {
	q := ParseQuery("is:favorite project plan")
	assert.True(t, q.FavoriteOnly)
	assert.Equal(t, []string{"project", "plan"}, q.Terms)
}

func TestParseQueryTagOperatorPreservesCase(t *testing.T) {
	q := ParseQuery("tag:Work notes")
	require.NotNil(t, q.Tag)
	assert.Equal(t, "Work", *q.Tag)
}

func TestParseQueryDateBounds(t *testing.T) {
	q := ParseQuery("after:2024-01-01 before:2024-01-31")
	require.NotNil(t, q.After)
	require.NotNil(t, q.Before)
	assert.True(t, *q.After < *q.Before)
}

func TestParseQueryInvalidDateIgnored(t *testing.T) {
	q := ParseQuery("after:not-a-date hi")
	assert.Nil(t, q.After)
	assert.Equal(t, []string{"hi"}, q.Terms)
}

func TestParseQueryRetainsAllTokensIncludingStopwords(t *testing.T) {
	q := ParseQuery("what is the react hooks tutorial")
	assert.Equal(t, []string{"what", "is", "the", "react", "hooks", "tutorial"}, q.Terms)
}

func TestParseQueryEmptyResidueYieldsNoTerms(t *testing.T) {
	q := ParseQuery("platform:claude is:favorite")
	assert.Empty(t, q.Terms)
}
