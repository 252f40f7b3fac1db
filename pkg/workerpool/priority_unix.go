//go:build !windows

package workerpool

import "golang.org/x/sys/unix"

// reniceLowestNice sets the calling process to the lowest (most favorable)
// POSIX nice value, per §4.5.3's "renice'd after spawn to an elevated
// scheduling priority (lowest nice value on POSIX)". PRIO_PROCESS with pid 0
// targets the calling process, since a workerProcess here is a goroutine
// inside the orchestrator, not a distinct OS process the spec can renice
// individually; see the DESIGN.md note on this scoping.
func reniceLowestNice() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, -20)
}
