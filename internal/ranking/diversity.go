// Package ranking reorders scored feed candidates: session pacing and
// content type diversity.
package ranking

import "github.com/example/lingofeed/pkg/models"

// DefaultMaxConsecutive is the longest allowed run of one content type
const DefaultMaxConsecutive = 2

// EnforceDiversity keeps items in order while dropping any item that would
// extend a run of the same content type beyond maxConsecutive. Dropped items
// do not stop the scan; it ends when limit items are kept (limit <= 0 means
// no limit) or candidates run out.
func EnforceDiversity(items []models.FeedItem, maxConsecutive, limit int) []models.FeedItem {
	if maxConsecutive <= 0 {
		maxConsecutive = DefaultMaxConsecutive
	}
	capacity := len(items)
	if limit > 0 && limit < capacity {
		capacity = limit
	}

	out := make([]models.FeedItem, 0, capacity)
	var lastType models.ContentType
	run := 0
	for i := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		t := items[i].Type
		if t == lastType && run >= maxConsecutive {
			continue
		}
		if t == lastType {
			run++
		} else {
			lastType, run = t, 1
		}
		out = append(out, items[i])
	}
	return out
}

// LongestRun returns the length of the longest run of one content type
func LongestRun(items []models.FeedItem) int {
	longest, run := 0, 0
	for i := range items {
		if i > 0 && items[i].Type == items[i-1].Type {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}
