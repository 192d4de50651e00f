package analysis

// unionFind is a disjoint-set over dense indices with path compression and
// union by rank. It is not safe for concurrent use; parallel compatibility
// shards emit edge lists that are merged here by a single writer.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// groups returns the members of every component with at least one element,
// in ascending index order within and across groups. The deterministic
// ordering keeps cluster identity stable across runs.
func (u *unionFind) groups() [][]int {
	byRoot := make(map[int][]int)
	order := make([]int, 0)
	for i := range u.parent {
		root := u.find(i)
		if _, seen := byRoot[root]; !seen {
			order = append(order, root)
		}
		byRoot[root] = append(byRoot[root], i)
	}

	out := make([][]int, 0, len(order))
	for _, root := range order {
		out = append(out, byRoot[root])
	}
	return out
}
