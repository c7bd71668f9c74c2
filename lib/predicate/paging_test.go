package predicate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrid/dgrid/lib/errs"
)

func TestPagingNavigation(t *testing.T) {
	p := Paging(True(), 2, nil)
	assert.Equal(t, 0, p.Page())
	assert.Equal(t, 2, p.PageSize())
	assert.Equal(t, IterationEntry, p.IterationType())

	p.PreviousPage()
	assert.Equal(t, 0, p.Page(), "previous page is clamped at 0")

	p.NextPage()
	p.NextPage()
	assert.Equal(t, 2, p.Page())
	p.PreviousPage()
	assert.Equal(t, 1, p.Page())

	require.NoError(t, p.SetPage(7))
	assert.Equal(t, 7, p.Page())

	err := p.SetPage(-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrIllegalArgument))
	assert.Equal(t, 7, p.Page(), "failed SetPage keeps the page")

	p.MergeAnchors([]Anchor{{Page: 0, Key: "k", Value: int32(1)}})
	p.Reset()
	assert.Equal(t, 0, p.Page())
	assert.Empty(t, p.Anchors())
}

func TestPagingNextThenPreviousRestoresPage(t *testing.T) {
	p := Paging(nil, 3, nil)
	for page := 0; page < 5; page++ {
		require.NoError(t, p.SetPage(page))
		p.NextPage()
		p.PreviousPage()
		assert.Equal(t, page, p.Page())
	}
}

func TestMergeAnchors(t *testing.T) {
	p := Paging(nil, 2, nil)
	p.MergeAnchors([]Anchor{
		{Page: 2, Key: "c"},
		{Page: 0, Key: "a"},
	})
	p.MergeAnchors([]Anchor{
		{Page: 1, Key: "b"},
		{Page: 2, Key: "c2"},
	})

	assert.Equal(t, []Anchor{
		{Page: 0, Key: "a"},
		{Page: 1, Key: "b"},
		{Page: 2, Key: "c2"},
	}, p.Anchors())

	// returned anchors are a copy
	p.Anchors()[0].Key = "changed"
	assert.Equal(t, "a", p.Anchors()[0].Key)
}

func TestNearestAnchor(t *testing.T) {
	p := Paging(nil, 2, nil)
	_, ok := p.NearestAnchor()
	assert.False(t, ok)

	p.MergeAnchors([]Anchor{{Page: 0, Key: "a"}, {Page: 1, Key: "b"}, {Page: 4, Key: "e"}})

	tests := []struct {
		page   int
		want   int
		exists bool
	}{
		{0, 0, false},
		{1, 0, true},
		{2, 1, true},
		{4, 1, true},
		{5, 4, true},
		{9, 4, true},
	}
	for _, tt := range tests {
		require.NoError(t, p.SetPage(tt.page))
		a, ok := p.NearestAnchor()
		assert.Equal(t, tt.exists, ok, "page %d", tt.page)
		if ok {
			assert.Equal(t, tt.want, a.Page, "page %d", tt.page)
		}
	}
}

func TestParseIterationType(t *testing.T) {
	for _, it := range []IterationType{IterationKey, IterationValue, IterationEntry} {
		got, err := ParseIterationType(it.String())
		require.NoError(t, err)
		assert.Equal(t, it, got)
	}
	_, err := ParseIterationType("BOTH")
	assert.Error(t, err)
}
