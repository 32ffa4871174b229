package request

import "accessdesk/internal/model"

var transitionMap = map[model.RequestStatus][]model.RequestStatus{
	model.StatusPending: {model.StatusApproved, model.StatusRejected},
}

// CanTransition reports whether from -> to is allowed. Approved and rejected are terminal.
func CanTransition(from, to model.RequestStatus) bool {
	for _, s := range transitionMap[from] {
		if s == to {
			return true
		}
	}
	return false
}
