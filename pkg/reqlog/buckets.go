package reqlog

import (
	"sort"
	"time"
)

// BucketStart truncates t down to the start of its width-sized bucket,
// measured from the Unix epoch in UTC.
func BucketStart(t time.Time, width time.Duration) time.Time {
	ms := t.UnixMilli()
	w := width.Milliseconds()
	if w <= 0 {
		return time.UnixMilli(ms).UTC()
	}
	b := ms / w * w
	if ms < 0 && ms%w != 0 {
		b -= w
	}
	return time.UnixMilli(b).UTC()
}

// Bucketize counts timestamps into fixed-width buckets. The result is sorted
// and gap-free between the first and last non-empty bucket.
func Bucketize(timestamps []time.Time, width time.Duration) []TimeBucket {
	if len(timestamps) == 0 {
		return nil
	}
	counts := make(map[int64]int)
	for _, ts := range timestamps {
		counts[BucketStart(ts, width).UnixMilli()]++
	}
	buckets := make([]TimeBucket, 0, len(counts))
	for k, c := range counts {
		buckets = append(buckets, TimeBucket{Timestamp: time.UnixMilli(k).UTC(), Count: c})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Timestamp.Before(buckets[j].Timestamp) })
	return FillBuckets(buckets, width)
}

// FillBuckets inserts zero-count buckets wherever sorted input skips a
// width-sized step, so every bar in the histogram is the same width.
func FillBuckets(buckets []TimeBucket, width time.Duration) []TimeBucket {
	if len(buckets) < 2 || width <= 0 {
		return buckets
	}
	out := make([]TimeBucket, 0, len(buckets))
	out = append(out, buckets[0])
	for _, b := range buckets[1:] {
		next := out[len(out)-1].Timestamp.Add(width)
		for next.Before(b.Timestamp) {
			out = append(out, TimeBucket{Timestamp: next})
			next = next.Add(width)
		}
		out = append(out, b)
	}
	return out
}

// Extent returns the earliest and latest bucket timestamps.
func Extent(buckets []TimeBucket) (from, to time.Time, ok bool) {
	if len(buckets) == 0 {
		return time.Time{}, time.Time{}, false
	}
	from, to = buckets[0].Timestamp, buckets[0].Timestamp
	for _, b := range buckets[1:] {
		if b.Timestamp.Before(from) {
			from = b.Timestamp
		}
		if b.Timestamp.After(to) {
			to = b.Timestamp
		}
	}
	return from, to, true
}

// MaxCount returns the largest bucket count, or 0 for no buckets.
func MaxCount(buckets []TimeBucket) int {
	m := 0
	for _, b := range buckets {
		if b.Count > m {
			m = b.Count
		}
	}
	return m
}
