//go:build windows

package extractor

import "os/exec"

func setProcAttr(cmd *exec.Cmd) {}
