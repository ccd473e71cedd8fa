package matching

import (
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
		code string
	}{
		{NewNotFound("event_not_found", "event 5 not found"), KindNotFound, "event_not_found"},
		{NewConflict("participant_already_assigned", "already assigned"), KindConflict, "participant_already_assigned"},
		{NewInvalid("group_full", "group is full"), KindInvalid, "group_full"},
		{NewInternal("persist_failed", "write failed"), KindInternal, "persist_failed"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			if KindOf(tc.err) != tc.kind {
				t.Errorf("expected kind %q, got %q", tc.kind, KindOf(tc.err))
			}
			if CodeOf(tc.err) != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, CodeOf(tc.err))
			}
			if !IsKind(tc.err, tc.kind) {
				t.Errorf("IsKind failed for %q", tc.code)
			}
		})
	}
}

func TestErrorKinds_Wrapped(t *testing.T) {
	err := fmt.Errorf("running matching: %w", NewInvalid("group_full", "group is full"))

	if !IsKind(err, KindInvalid) {
		t.Error("expected wrapped error to keep its kind")
	}
	if CodeOf(err) != "group_full" {
		t.Errorf("expected code group_full, got %q", CodeOf(err))
	}
}

func TestErrorKinds_Plain(t *testing.T) {
	err := fmt.Errorf("plain error")

	if KindOf(err) != KindInternal {
		t.Errorf("expected plain errors to report internal kind, got %q", KindOf(err))
	}
}
