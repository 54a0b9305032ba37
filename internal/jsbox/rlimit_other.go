//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package jsbox

func setSandboxRlimits() {}
