package stats

import "sort"

// LabelCount pairs a label index with its number of boxes.
type LabelCount struct {
	Index int
	Count int
}

// TopLabels returns the n most used labels, ties broken by index. Labels with
// no boxes are left out.
func TopLabels(perLabel []int, n int) []LabelCount {
	if n <= 0 || len(perLabel) == 0 {
		return nil
	}
	items := make([]LabelCount, 0, len(perLabel))
	for i, c := range perLabel {
		if c > 0 {
			items = append(items, LabelCount{Index: i, Count: c})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Index < items[j].Index
		}
		return items[i].Count > items[j].Count
	})
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
