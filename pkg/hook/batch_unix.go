//go:build !windows

package hook

import "golang.org/x/sys/unix"

// maxCommandLength derives the argv budget the way the kernel does: a
// quarter of the stack rlimit, floored at the POSIX minimum and capped so a
// single invocation never gets absurdly large. argv and environ share the
// budget, so the current environment size is subtracted.
func maxCommandLength() int {
	limit := 128 * 1024 // POSIX ARG_MAX floor

	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rl); err == nil && rl.Cur != unix.RLIM_INFINITY {
		if derived := int(rl.Cur / 4); derived > limit { //nolint:gosec // rlimit fits int on supported platforms
			limit = derived
		}
	}
	const ceiling = 2 * 1024 * 1024
	if limit > ceiling {
		limit = ceiling
	}

	limit -= environSize()
	if limit < 4096 {
		limit = 4096
	}
	return limit
}
