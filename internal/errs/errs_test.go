package errs

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestError_IsMatchesSentinelByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("run: %w", New(KindNoDataProcessed, "process", "", io.ErrUnexpectedEOF))

	if !errors.Is(err, ErrNoDataProcessed) {
		t.Fatalf("errors.Is(%v, ErrNoDataProcessed) = false", err)
	}
	if errors.Is(err, ErrMissingReferenceData) {
		t.Fatalf("errors.Is matched the wrong sentinel")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if got := KindOf(err); got != KindNoDataProcessed {
		t.Fatalf("KindOf = %v, want %v", got, KindNoDataProcessed)
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := Errorf(KindPerFileProcessing, "process file", "/data/BACI_HS92_Y2020.csv", "line %d: bad value", 7)
	msg := err.Error()
	for _, want := range []string{"PerFileProcessingError", "process file", "BACI_HS92_Y2020.csv", "line 7"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestKind_Fatal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		k    Kind
		want bool
	}{
		{KindMissingReferenceData, true},
		{KindNoMainFilesFound, true},
		{KindPerFileProcessing, false},
		{KindNoDataProcessed, true},
		{KindUnsupportedOutputFormat, true},
		{KindDuplicateReferenceKey, true},
	}
	for _, c := range cases {
		if got := c.k.Fatal(); got != c.want {
			t.Errorf("%v.Fatal() = %v, want %v", c.k, got, c.want)
		}
	}
}

func TestKindOf_PlainError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %v, want KindUnknown", got)
	}
}
