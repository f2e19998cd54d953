package order

// orderState implements the state pattern for order lifecycle transitions.
// Transitions only move forward; signalling an event to a state that does not
// accept it returns ErrInvalidStateTransition, and re-signalling the event
// that produced the current state is an idempotent no-op.
type orderState interface {
	Status() Status
	OnChargeSucceeded(o *Order) (orderState, error)
	OnChargeFailed(o *Order, reason string) (orderState, error)
	OnCancelled(o *Order, reason string) (orderState, error)
	OnExpired(o *Order) (orderState, error)
	OnRefundRequested(o *Order) (orderState, error)
	OnRefunded(o *Order) (orderState, error)
}

func stateFor(s Status) orderState {
	switch s {
	case StatusInitiated:
		return initiatedState{}
	case StatusProcessing:
		return processingState{}
	case StatusPaid:
		return paidState{}
	case StatusFailed:
		return failedState{}
	case StatusCancelled:
		return cancelledState{}
	case StatusRefunding:
		return refundingState{}
	case StatusRefunded:
		return refundedState{}
	case StatusExpired:
		return expiredState{}
	default:
		return initiatedState{}
	}
}

func (o *Order) transition(apply func(orderState) (orderState, error)) error {
	next, err := apply(stateFor(o.Status))
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

// ChargeSucceeded settles the order.
func (o *Order) ChargeSucceeded() error {
	return o.transition(func(s orderState) (orderState, error) {
		next, err := s.OnChargeSucceeded(o)
		if err == nil {
			o.FailureReason = ""
		}
		return next, err
	})
}

// ChargeFailed records the capture failure.
func (o *Order) ChargeFailed(reason string) error {
	return o.transition(func(s orderState) (orderState, error) { return s.OnChargeFailed(o, reason) })
}

// Cancelled aborts an unsettled order.
func (o *Order) Cancelled(reason string) error {
	return o.transition(func(s orderState) (orderState, error) { return s.OnCancelled(o, reason) })
}

// Expired times out an unsettled order.
func (o *Order) Expired() error {
	return o.transition(func(s orderState) (orderState, error) { return s.OnExpired(o) })
}

// RefundRequested is the only path out of paid.
func (o *Order) RefundRequested() error {
	return o.transition(func(s orderState) (orderState, error) { return s.OnRefundRequested(o) })
}

// Refunded completes the refund flow.
func (o *Order) Refunded() error {
	return o.transition(func(s orderState) (orderState, error) { return s.OnRefunded(o) })
}

type initiatedState struct{}

func (initiatedState) Status() Status { return StatusInitiated }

func (initiatedState) OnChargeSucceeded(o *Order) (orderState, error) {
	return paidState{}, nil
}

func (initiatedState) OnChargeFailed(o *Order, reason string) (orderState, error) {
	o.FailureReason = reason
	return failedState{}, nil
}

func (initiatedState) OnCancelled(o *Order, reason string) (orderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

func (initiatedState) OnExpired(o *Order) (orderState, error) {
	return expiredState{}, nil
}

func (initiatedState) OnRefundRequested(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (initiatedState) OnRefunded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnChargeSucceeded(o *Order) (orderState, error) {
	return paidState{}, nil
}

func (processingState) OnChargeFailed(o *Order, reason string) (orderState, error) {
	o.FailureReason = reason
	return failedState{}, nil
}

func (processingState) OnCancelled(o *Order, reason string) (orderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

func (processingState) OnExpired(o *Order) (orderState, error) {
	return expiredState{}, nil
}

func (processingState) OnRefundRequested(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnRefunded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type paidState struct{}

func (paidState) Status() Status { return StatusPaid }

func (paidState) OnChargeSucceeded(*Order) (orderState, error) {
	return paidState{}, nil
}

func (paidState) OnChargeFailed(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paidState) OnCancelled(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paidState) OnExpired(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paidState) OnRefundRequested(*Order) (orderState, error) {
	return refundingState{}, nil
}

func (paidState) OnRefunded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type failedState struct{}

func (failedState) Status() Status { return StatusFailed }

func (failedState) OnChargeSucceeded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnChargeFailed(o *Order, reason string) (orderState, error) {
	return failedState{}, nil
}

func (failedState) OnCancelled(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnExpired(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnRefundRequested(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnRefunded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnChargeSucceeded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnChargeFailed(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancelled(*Order, string) (orderState, error) {
	return cancelledState{}, nil
}

func (cancelledState) OnExpired(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnRefundRequested(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnRefunded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type refundingState struct{}

func (refundingState) Status() Status { return StatusRefunding }

func (refundingState) OnChargeSucceeded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundingState) OnChargeFailed(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundingState) OnCancelled(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundingState) OnExpired(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundingState) OnRefundRequested(*Order) (orderState, error) {
	return refundingState{}, nil
}

func (refundingState) OnRefunded(*Order) (orderState, error) {
	return refundedState{}, nil
}

type refundedState struct{}

func (refundedState) Status() Status { return StatusRefunded }

func (refundedState) OnChargeSucceeded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundedState) OnChargeFailed(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundedState) OnCancelled(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundedState) OnExpired(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundedState) OnRefundRequested(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (refundedState) OnRefunded(*Order) (orderState, error) {
	return refundedState{}, nil
}

type expiredState struct{}

func (expiredState) Status() Status { return StatusExpired }

func (expiredState) OnChargeSucceeded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (expiredState) OnChargeFailed(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (expiredState) OnCancelled(*Order, string) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (expiredState) OnExpired(*Order) (orderState, error) {
	return expiredState{}, nil
}

func (expiredState) OnRefundRequested(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (expiredState) OnRefunded(*Order) (orderState, error) {
	return nil, ErrInvalidStateTransition
}
