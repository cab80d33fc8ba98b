package fabric

import (
	"errors"
	"testing"

	"github.com/contextfabric/fabric/internal/store"
)

func TestError_ErrorStringIncludesKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	e := newError(CorruptStore, "otype array truncated", cause)
	got := e.Error()
	if got != "[CorruptStore] otype array truncated: boom" {
		t.Errorf("unexpected error string: %q", got)
	}
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("disk full")
	e := newError(IoError, "write failed", cause)
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to reach the wrapped cause")
	}
}

func TestUnknownName_SetsNameKindAndName(t *testing.T) {
	e := unknownName("feature", "gloss")
	if e.Kind != UnknownName || e.NameKind != "feature" || e.Name != "gloss" {
		t.Errorf("unexpected unknownName result: %+v", e)
	}
}

func TestFromStoreErr_MapsSentinelsToKinds(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{store.ErrCorruptStore, CorruptStore},
		{store.ErrVersionMismatch, VersionMismatch},
		{store.ErrArrayOutOfRange, ArrayOutOfRange},
		{store.ErrMissingFeature, MissingFeature},
		{errors.New("some other failure"), IoError},
	}
	for _, tc := range cases {
		got := fromStoreErr("/corpus/path", tc.err)
		if got.Kind != tc.want {
			t.Errorf("fromStoreErr(%v): expected kind %s, got %s", tc.err, tc.want, got.Kind)
		}
		if got.Path != "/corpus/path" {
			t.Errorf("expected Path to be preserved, got %q", got.Path)
		}
	}
}

func TestFromStoreErr_NilReturnsNil(t *testing.T) {
	if fromStoreErr("path", nil) != nil {
		t.Error("expected nil error to map to nil")
	}
}
