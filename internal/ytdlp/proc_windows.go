//go:build windows

package ytdlp

import "os/exec"

// killProcessGroup keeps the default of killing only the direct child;
// WaitDelay still bounds Run when descendants hold the output open.
func killProcessGroup(cmd *exec.Cmd) {}
