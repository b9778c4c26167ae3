//go:build unix

package supervisor

import "syscall"

// processGroupAttr puts the child in its own process group so Terminate can
// signal the whole group (and any grandchildren a pipeline stage forks)
// rather than just the direct child (spec §4.2.3).
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
