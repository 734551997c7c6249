package appointment

import (
	"errors"
	"testing"

	"github.com/careline/careline/internal/platform/apperr"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to string
		force    bool
		want     error
	}{
		{StatusPending, StatusConfirmed, false, nil},
		{StatusPending, StatusCancelled, false, nil},
		{StatusPending, StatusPending, false, nil},
		{StatusPending, StatusCompleted, false, apperr.ErrConflict},
		{StatusConfirmed, StatusCompleted, false, nil},
		{StatusConfirmed, StatusCancelled, false, nil},
		{StatusConfirmed, StatusConfirmed, false, nil},
		{StatusConfirmed, StatusPending, false, apperr.ErrConflict},
		{StatusCancelled, StatusPending, false, apperr.ErrConflict},
		{StatusCancelled, StatusCancelled, false, apperr.ErrConflict},
		{StatusCompleted, StatusConfirmed, false, apperr.ErrConflict},
		{StatusCompleted, StatusCompleted, false, apperr.ErrConflict},
		{StatusPending, "noshow", false, apperr.ErrValidation},
		{StatusCancelled, StatusPending, true, nil},
		{StatusCompleted, StatusConfirmed, true, nil},
		{StatusPending, "", true, apperr.ErrValidation},
	}
	for _, tt := range tests {
		name := tt.from + "->" + tt.to
		if tt.force {
			name += " (force)"
		}
		t.Run(name, func(t *testing.T) {
			err := Transition(tt.from, tt.to, TransitionOptions{Force: tt.force})
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected transition to be allowed, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		StatusPending:   false,
		StatusConfirmed: false,
		StatusCancelled: true,
		StatusCompleted: true,
	} {
		if got := IsTerminal(status); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
