//go:build linux || darwin || freebsd || netbsd || openbsd

package jsbox

import "syscall"

const sandboxCPUSeconds = 2

// setSandboxRlimits is best effort; the parent's timeout still applies.
func setSandboxRlimits() {
	_ = syscall.Setrlimit(syscall.RLIMIT_CPU, &syscall.Rlimit{Cur: sandboxCPUSeconds, Max: sandboxCPUSeconds})
}
