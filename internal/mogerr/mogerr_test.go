package mogerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(FileNotFound, "no such session")
	if plain.Error() != "FileNotFound: no such session" {
		t.Fatalf("plain: %q", plain.Error())
	}

	wrapped := Wrap(PatchConflict, "hunk 2 failed", errors.New("context mismatch"))
	if wrapped.Error() != "PatchConflict: hunk 2 failed: context mismatch" {
		t.Fatalf("wrapped: %q", wrapped.Error())
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := New(PathOutsideRoot, "escape attempt")
	outer := fmt.Errorf("tool failed: %w", inner)

	if !Is(outer, PathOutsideRoot) {
		t.Fatal("Is should see through fmt.Errorf wrapping")
	}
	if Is(outer, FileNotFound) {
		t.Fatal("Is matched the wrong kind")
	}
	if Is(errors.New("bare"), PathOutsideRoot) {
		t.Fatal("Is matched a non-typed error")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(StreamTransport, "send failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should reach the cause")
	}
}
