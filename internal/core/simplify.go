package core

import "sort"

// Simplify reduces a set of tiles to the minimal set covering the same area:
// tiles whose ancestor is present are dropped, and complete sibling quartets
// are merged into their parent until a fixed point. Idempotent.
func Simplify(tiles []Tile) []Tile {
	return SimplifyToZoom(tiles, 0)
}

// SimplifyToZoom is Simplify with a merge floor: siblings are never merged
// into a parent above (shallower than) minzoom.
func SimplifyToZoom(tiles []Tile, minzoom int) []Tile {
	// Shallow tiles first so ancestors land in the set before descendants.
	sorted := make([]Tile, len(tiles))
	copy(sorted, tiles)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})

	root := make(map[Tile]struct{}, len(sorted))
	for _, t := range sorted {
		if !hasAncestorIn(t, root) {
			root[t] = struct{}{}
		}
	}

	for merged := true; merged; {
		root, merged = mergeSiblings(root, minzoom)
	}

	out := make([]Tile, 0, len(root))
	for t := range root {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return out
}

func hasAncestorIn(t Tile, set map[Tile]struct{}) bool {
	for {
		p, ok := t.Parent()
		if !ok {
			return false
		}
		if _, hit := set[p]; hit {
			return true
		}
		t = p
	}
}

// mergeSiblings replaces every complete quartet of siblings with its parent.
func mergeSiblings(set map[Tile]struct{}, minzoom int) (map[Tile]struct{}, bool) {
	byParent := make(map[Tile][]Tile)
	out := make(map[Tile]struct{}, len(set))
	for t := range set {
		if t.Z <= minzoom {
			out[t] = struct{}{}
			continue
		}
		p, _ := t.Parent()
		byParent[p] = append(byParent[p], t)
	}
	changed := false
	for p, children := range byParent {
		if len(children) == 4 {
			out[p] = struct{}{}
			changed = true
			continue
		}
		for _, c := range children {
			out[c] = struct{}{}
		}
	}
	return out, changed
}
