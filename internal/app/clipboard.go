package app

import (
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

var clipboardWriteAll = clipboard.WriteAll

func copyTextToClipboard(text string) error {
	if err := clipboardWriteAll(text); err != nil {
		return humanizeClipboardError(err)
	}
	return nil
}

func (m *Model) copyWithStatus(text, success string) bool {
	if strings.TrimSpace(text) == "" {
		m.setStatusError("nothing to copy")
		return false
	}
	if err := copyTextToClipboard(text); err != nil {
		m.setStatusError("copy failed: " + err.Error())
		return false
	}
	m.setStatusInfo(success)
	return true
}

type clipboardError struct {
	msg string
}

func (e *clipboardError) Error() string { return e.msg }

func humanizeClipboardError(err error) error {
	msg := strings.TrimSpace(err.Error())
	if msg == "exit status 1" && missingDisplay() {
		return &clipboardError{msg: "no GUI clipboard available (DISPLAY/WAYLAND_DISPLAY unset)"}
	}
	return &clipboardError{msg: msg}
}

func missingDisplay() bool {
	return strings.TrimSpace(os.Getenv("DISPLAY")) == "" && strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) == ""
}
