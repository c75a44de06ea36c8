package app

import (
	"errors"
	"strings"
	"testing"
)

func TestCopyWithStatusSuccess(t *testing.T) {
	m, _ := newTestModel(t)

	var copied string
	restore := clipboardWriteAll
	clipboardWriteAll = func(text string) error {
		copied = text
		return nil
	}
	defer func() { clipboardWriteAll = restore }()

	if !m.copyWithStatus("the reply", "copied") {
		t.Fatal("copy should succeed")
	}
	if copied != "the reply" {
		t.Fatalf("copied %q", copied)
	}
	if m.statusErr || m.status != "copied" {
		t.Fatalf("status = %q err=%v", m.status, m.statusErr)
	}
}

func TestCopyWithStatusFailure(t *testing.T) {
	m, _ := newTestModel(t)

	restore := clipboardWriteAll
	clipboardWriteAll = func(string) error { return errors.New("no xclip") }
	defer func() { clipboardWriteAll = restore }()

	if m.copyWithStatus("text", "copied") {
		t.Fatal("copy should fail")
	}
	if !m.statusErr || !strings.Contains(m.status, "no xclip") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestCopyWithStatusEmptyText(t *testing.T) {
	m, _ := newTestModel(t)

	restore := clipboardWriteAll
	clipboardWriteAll = func(string) error {
		t.Fatal("clipboard must not be touched for empty text")
		return nil
	}
	defer func() { clipboardWriteAll = restore }()

	if m.copyWithStatus("  ", "copied") {
		t.Fatal("empty copy should be refused")
	}
}
