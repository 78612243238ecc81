package mirror

import (
	"strconv"
	"strings"
)

// CompareTimestamps orders two mirror consensus timestamps of the form
// "seconds.nanoseconds". It returns -1, 0, or 1. The empty string sorts
// before every real timestamp.
func CompareTimestamps(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}

	as, an := splitTimestamp(a)
	bs, bn := splitTimestamp(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	case an < bn:
		return -1
	case an > bn:
		return 1
	}
	return 0
}

// MaxTimestamp returns the later of two consensus timestamps.
func MaxTimestamp(a, b string) string {
	if CompareTimestamps(a, b) >= 0 {
		return a
	}
	return b
}

func splitTimestamp(ts string) (int64, int64) {
	secStr, nanoStr, _ := strings.Cut(ts, ".")
	sec, _ := strconv.ParseInt(secStr, 10, 64)
	// Nanosecond fields are zero-padded to nine digits on the wire; pad
	// again in case a caller hands us a trimmed value.
	for len(nanoStr) < 9 {
		nanoStr += "0"
	}
	nano, _ := strconv.ParseInt(nanoStr, 10, 64)
	return sec, nano
}
