package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docqa/types"
)

func draftsForImages() []chunkDraft {
	return []chunkDraft{
		{raw: "0123456789", offset: 0},   // [0,10)
		{raw: "0123456789", offset: 10},  // [10,20)
		{raw: "0123456789", offset: 100}, // [100,110)
	}
}

func TestAssignImages_NearestOffset(t *testing.T) {
	assigned := assignImages(draftsForImages(), []types.ImageRef{
		{ID: "img1", Offset: 3},
		{ID: "img2", Offset: 15},
		{ID: "img3", Offset: 95},
	})

	assert.Equal(t, []string{"img1"}, assigned[0])
	assert.Equal(t, []string{"img2"}, assigned[1])
	assert.Equal(t, []string{"img3"}, assigned[2])
}

func TestAssignImages_GroupStaysTogether(t *testing.T) {
	// 多图组成的示意图：组内偏移分散在不同块的区间上
	assigned := assignImages(draftsForImages(), []types.ImageRef{
		{ID: "part1", Group: "diagram", Offset: 5},
		{ID: "part2", Group: "diagram", Offset: 105},
	})

	require.Len(t, assigned, 1)
	assert.Equal(t, []string{"part1", "part2"}, assigned[0])
}

func TestAssignImages_Empty(t *testing.T) {
	assert.Nil(t, assignImages(nil, []types.ImageRef{{ID: "x"}}))
	assert.Nil(t, assignImages(draftsForImages(), nil))
}
