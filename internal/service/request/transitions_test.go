package request

import (
	"testing"

	"accessdesk/internal/model"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.RequestStatus
		want     bool
	}{
		{model.StatusPending, model.StatusApproved, true},
		{model.StatusPending, model.StatusRejected, true},
		{model.StatusPending, model.StatusPending, false},
		{model.StatusApproved, model.StatusRejected, false},
		{model.StatusRejected, model.StatusApproved, false},
		{model.StatusApproved, model.StatusApproved, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
