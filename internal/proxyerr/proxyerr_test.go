package proxyerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindForbiddenTarget, "blocked: %s", "http://10.0.0.1/")
	if KindOf(err) != KindForbiddenTarget {
		t.Errorf("KindOf = %v", KindOf(err))
	}

	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("untyped errors must classify as INTERNAL_UNEXPECTED")
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(KindTooManyRedirects, "chain too long")
	wrapped := fmt.Errorf("while proxying: %w", inner)
	if KindOf(wrapped) != KindTooManyRedirects {
		t.Errorf("KindOf(wrapped) = %v", KindOf(wrapped))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindBadUpstream, cause, "fetch failed")
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}
