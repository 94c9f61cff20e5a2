package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fuzzymachine/efficiency/pkg/fault"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want fault.Kind
	}{
		{"not found", fault.NotFound("machine %d not found", 7), fault.KindNotFound},
		{"validation wrapped by fmt", fmt.Errorf("api: %w", fault.Validation("bad row")), fault.KindValidation},
		{"plain error", errors.New("boom"), fault.KindInternal},
		{"wrap keeps kind", fault.Wrap(errors.New("io"), fault.KindConfiguration, "load rules"), fault.KindConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fault.KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fault.Wrap(cause, fault.KindComputation, "defuzzify")
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find the cause")
	}
	if got := err.Error(); got != "defuzzify: disk full" {
		t.Errorf("Error() = %q", got)
	}
	if fault.Wrap(nil, fault.KindInternal, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestMessageOf(t *testing.T) {
	err := fmt.Errorf("store: %w", fault.NotFound("machine 3 not found"))
	if got := fault.MessageOf(err); got != "machine 3 not found" {
		t.Errorf("MessageOf = %q", got)
	}
	if !fault.Is(err, fault.KindNotFound) {
		t.Error("Is(NotFound) = false")
	}
}
