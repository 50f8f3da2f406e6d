package synonym

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kiji/internal/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	m := mock.NewProvider()
	m.SynonymsFunc = func(ctx context.Context, word string) ([]string, error) {
		return []string{"Automobile", " ", "car", "AUTO", "automobile"}, nil
	}
	e := NewExpander(m)

	got := e.Expand(context.Background(), "  Car ")
	assert.Equal(t, []string{"car", "automobile", "auto"}, got)
}

func TestExpand_empty(t *testing.T) {
	m := mock.NewProvider()
	e := NewExpander(m)

	assert.Equal(t, []string{}, e.Expand(context.Background(), "   "))
	assert.Equal(t, 0, m.SynonymCalls())
}

func TestExpand_serviceErrorFallsBackToWord(t *testing.T) {
	m := mock.NewProvider()
	m.SynonymsFunc = func(ctx context.Context, word string) ([]string, error) {
		return nil, errors.New("model offline")
	}
	e := NewExpander(m)

	assert.Equal(t, []string{"climate"}, e.Expand(context.Background(), "Climate"))
	// failures are not cached
	e.Expand(context.Background(), "climate")
	assert.Equal(t, 2, m.SynonymCalls())
}

func TestExpand_nilService(t *testing.T) {
	e := NewExpander(nil)
	assert.Equal(t, []string{"red"}, e.Expand(context.Background(), "RED"))
}

func TestExpand_cached(t *testing.T) {
	m := mock.NewProvider()
	m.SynonymsFunc = func(ctx context.Context, word string) ([]string, error) {
		return []string{"global warming"}, nil
	}
	e := NewExpander(m)

	first := e.Expand(context.Background(), "climate")
	first[1] = "mutated"
	second := e.Expand(context.Background(), "CLIMATE")
	assert.Equal(t, []string{"climate", "global warming"}, second)
	assert.Equal(t, 1, m.SynonymCalls())
}

func TestExpand_cacheDisabled(t *testing.T) {
	m := mock.NewProvider()
	e := NewExpander(m, WithCacheSize(0))
	e.Expand(context.Background(), "x")
	e.Expand(context.Background(), "x")
	assert.Equal(t, 2, m.SynonymCalls())
}

func TestExpandQuery(t *testing.T) {
	m := mock.NewProvider()
	m.SynonymsFunc = func(ctx context.Context, word string) ([]string, error) {
		if word == "car" {
			return []string{"automobile"}, nil
		}
		return nil, nil
	}
	e := NewExpander(m)

	groups := e.ExpandQuery(context.Background(), "  Red\tCAR ")
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"red"}, groups[0])
	assert.Equal(t, []string{"car", "automobile"}, groups[1])
}

func TestExpandQuery_everyGroupHoldsToken(t *testing.T) {
	m := mock.NewProvider()
	m.SynonymsFunc = func(ctx context.Context, word string) ([]string, error) {
		return []string{"something else"}, nil
	}
	e := NewExpander(m)

	for _, q := range []string{"a", "Hello World", "x y z y"} {
		groups := e.ExpandQuery(context.Background(), q)
		tokens := splitLower(q)
		require.Len(t, groups, len(tokens), q)
		for i, tok := range tokens {
			assert.Contains(t, groups[i], tok)
		}
	}
}

func TestExpandQuery_noTokens(t *testing.T) {
	e := NewExpander(mock.NewProvider())
	assert.Empty(t, e.ExpandQuery(context.Background(), " \n "))
}

func TestCache_evicts(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []string{"a"})
	c.Set("b", []string{"b"})
	c.Get("a")
	c.Set("c", []string{"c"})

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.Equal(t, 2, c.Len())
}

func splitLower(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		out = append(out, strings.ToLower(f))
	}
	return out
}
