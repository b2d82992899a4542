package download

import "time"

// DateRange is an inclusive calendar window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// DefaultChunkDays keeps a 1-minute stock request under Polygon's
// 50k-aggregate page limit.
const DefaultChunkDays = 45

// ChunkRange splits [from, to] into consecutive windows of at most days
// calendar days each.
func ChunkRange(from, to time.Time, days int) []DateRange {
	if days < 1 {
		days = 1
	}

	var chunks []DateRange
	cur := from
	for !cur.After(to) {
		end := cur.AddDate(0, 0, days-1)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, DateRange{From: cur, To: end})
		cur = end.AddDate(0, 0, 1)
	}
	return chunks
}

// MonthChunks splits [from, to] into calendar-month windows, clipping the
// first and last to the requested range. FX history is pulled month by month.
func MonthChunks(from, to time.Time) []DateRange {
	var chunks []DateRange
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(to) {
		next := cur.AddDate(0, 1, 0)

		start := cur
		if start.Before(from) {
			start = from
		}
		end := next.AddDate(0, 0, -1)
		if end.After(to) {
			end = to
		}

		chunks = append(chunks, DateRange{From: start, To: end})
		cur = next
	}
	return chunks
}
