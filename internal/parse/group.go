package parse

import "sort"

// turnGroup is a provisional turn: every candidate sharing one root
// timestamp. Lines stays sorted ascending.
type turnGroup struct {
	Timestamp string
	Messages  []Candidate
	Lines     []int
}

// rootTimestamp follows parent links among the candidates until it reaches
// one whose parent is unknown. A chain that revisits a message has no root.
func rootTimestamp(c Candidate, byUUID map[string]Candidate) (string, bool) {
	cur := c
	visited := map[string]bool{}
	if cur.UUID != "" {
		visited[cur.UUID] = true
	}
	for cur.ParentUUID != "" {
		parent, ok := byUUID[cur.ParentUUID]
		if !ok {
			break
		}
		if visited[parent.UUID] {
			return "", false
		}
		visited[parent.UUID] = true
		cur = parent
	}
	if cur.Timestamp == "" {
		return "", false
	}
	return cur.Timestamp, true
}

// groupByRoot clusters candidates by root timestamp and returns the groups
// ordered by that timestamp.
func groupByRoot(cands []Candidate) []*turnGroup {
	byUUID := make(map[string]Candidate, len(cands))
	for _, c := range cands {
		if c.UUID != "" {
			byUUID[c.UUID] = c
		}
	}

	groups := map[string]*turnGroup{}
	var order []*turnGroup
	for _, c := range cands {
		ts, ok := rootTimestamp(c, byUUID)
		if !ok {
			continue
		}
		g := groups[ts]
		if g == nil {
			g = &turnGroup{Timestamp: ts}
			groups[ts] = g
			order = append(order, g)
		}
		g.Messages = append(g.Messages, c)
		g.Lines = append(g.Lines, c.Line)
	}

	for _, g := range order {
		g.Lines = sortedUnique(g.Lines)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Timestamp < order[j].Timestamp
	})
	return order
}

func sortedUnique(lines []int) []int {
	sort.Ints(lines)
	out := lines[:0]
	for _, l := range lines {
		if len(out) > 0 && out[len(out)-1] == l {
			continue
		}
		out = append(out, l)
	}
	return out
}
