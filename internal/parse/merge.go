package parse

import (
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

func groupTextHash(g *turnGroup) uint64 {
	texts := make([]string, len(g.Messages))
	for i, m := range g.Messages {
		texts[i] = ExtractText(m.Content)
	}
	return xxhash.Sum64String(strings.Join(texts, "|"))
}

// mergeRetries folds runs of groups that repeat the first group's text within
// window of its timestamp. Groups must already be in timestamp order.
func mergeRetries(groups []*turnGroup, window time.Duration) []*turnGroup {
	if len(groups) == 0 {
		return nil
	}

	var merged []*turnGroup
	i := 0
	for i < len(groups) {
		cur := groups[i]
		curHash := groupTextHash(cur)
		curTS := parseTimestamp(cur.Timestamp)

		j := i + 1
		for ; j < len(groups); j++ {
			next := groups[j]
			nextTS := parseTimestamp(next.Timestamp)
			if curTS.IsZero() || nextTS.IsZero() {
				break
			}
			if absDuration(nextTS.Sub(curTS)) > window || groupTextHash(next) != curHash {
				break
			}
			cur.Messages = append(cur.Messages, next.Messages...)
			cur.Lines = sortedUnique(append(cur.Lines, next.Lines...))
		}

		merged = append(merged, cur)
		i = j
	}
	return merged
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
