//go:build windows

package workerpool

import "golang.org/x/sys/windows"

// reniceLowestNice raises the calling process to HIGH_PRIORITY_CLASS, the
// Windows analogue of §4.5.3's POSIX lowest-nice-value requirement.
func reniceLowestNice() error {
	return windows.SetPriorityClass(windows.CurrentProcess(), windows.HIGH_PRIORITY_CLASS)
}
