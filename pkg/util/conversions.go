package util

import "time"

// NowMs returns the current wall clock in milliseconds
func NowMs() int64 {
	return time.Now().UnixMilli()
}
