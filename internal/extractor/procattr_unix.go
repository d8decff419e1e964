//go:build !windows

package extractor

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the subprocess in its own process group so signals sent
// to the tool do not tear down an in-flight unzip mid-write.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
