package booking

import "tischbuch/internal/model"

// FSM holds the allowed reservation status transitions.
type FSM struct {
	transitions map[model.ReservationStatus][]model.ReservationStatus
}

// NewFSM creates a new FSM with predefined transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[model.ReservationStatus][]model.ReservationStatus{
			model.StatusNew:       {model.StatusConfirmed, model.StatusCancelled},
			model.StatusConfirmed: {model.StatusArrived, model.StatusNoShow, model.StatusCancelled},
			model.StatusArrived:   {model.StatusCompleted, model.StatusCancelled},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to model.ReservationStatus) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
