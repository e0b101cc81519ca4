package uv

import (
	"fmt"

	"github.com/dhconnelly/rtreego"
)

type islandBox struct {
	is   *Island
	rect rtreego.Rect
}

func (b *islandBox) Bounds() rtreego.Rect { return b.rect }

// OverlapPairs returns every pair of islands whose AABBs overlap with
// positive area, lower index first. Boxes that only touch do not count.
func OverlapPairs(islands []*Island) ([][2]*Island, error) {
	tree := rtreego.NewTree(2, 25, 50)
	boxes := make([]*islandBox, 0, len(islands))
	for _, is := range islands {
		max := is.Min.Add(is.BoxSize)
		r, err := rtreego.NewRectFromPoints(
			rtreego.Point{is.Min[0], is.Min[1]},
			rtreego.Point{max[0], max[1]},
		)
		if err != nil {
			return nil, fmt.Errorf("uv: island %d bounds: %w", is.Index, err)
		}
		b := &islandBox{is: is, rect: r}
		boxes = append(boxes, b)
		tree.Insert(b)
	}

	pos := make(map[*Island]int, len(islands))
	for i, is := range islands {
		pos[is] = i
	}

	var out [][2]*Island
	for i, b := range boxes {
		for _, hit := range tree.SearchIntersect(b.rect) {
			other := hit.(*islandBox).is
			if pos[other] > i {
				out = append(out, [2]*Island{b.is, other})
			}
		}
	}
	return out, nil
}
