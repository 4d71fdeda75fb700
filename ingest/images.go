package ingest

import (
	"math"

	"github.com/BaSui01/docqa/types"
)

// assignImages 两遍式图片挂载。
// 第一遍按分组键归组，保证多图组成的示意图不会被拆到不同块；
// 第二遍把每组（或未归组的单图）挂到文档偏移最近的块上。
func assignImages(drafts []chunkDraft, images []types.ImageRef) map[int][]string {
	if len(drafts) == 0 || len(images) == 0 {
		return nil
	}

	type imageGroup struct {
		ids    []string
		offset int
	}

	// 第一遍：归组，组偏移取组内最小偏移
	grouped := make(map[string]*imageGroup)
	var groups []*imageGroup
	for _, img := range images {
		if img.Group == "" {
			groups = append(groups, &imageGroup{ids: []string{img.ID}, offset: img.Offset})
			continue
		}
		g, ok := grouped[img.Group]
		if !ok {
			g = &imageGroup{offset: img.Offset}
			grouped[img.Group] = g
			groups = append(groups, g)
		}
		g.ids = append(g.ids, img.ID)
		if img.Offset < g.offset {
			g.offset = img.Offset
		}
	}

	// 第二遍：每组整体挂到偏移最近的块
	assigned := make(map[int][]string)
	for _, g := range groups {
		best := 0
		bestDist := math.MaxInt
		for i, d := range drafts {
			dist := offsetDistance(g.offset, d)
			if dist < bestDist {
				bestDist = dist
				best = i
			}
		}
		assigned[best] = append(assigned[best], g.ids...)
	}
	return assigned
}

// offsetDistance 图片偏移到块区间的距离，落在区间内为 0
func offsetDistance(offset int, d chunkDraft) int {
	start := d.offset
	end := d.offset + len(d.raw)
	if offset < start {
		return start - offset
	}
	if offset >= end {
		return offset - end + 1
	}
	return 0
}
