package domain

type CheckoutState string

const (
	CheckoutStateIdle           CheckoutState = "IDLE"
	CheckoutStateAuthenticating CheckoutState = "AUTHENTICATING"
	CheckoutStateCreatingOrder  CheckoutState = "CREATING_ORDER"
	CheckoutStateProcessingLine CheckoutState = "PROCESSING_LINE"
	CheckoutStateCompleted      CheckoutState = "COMPLETED"
	CheckoutStateFailed         CheckoutState = "FAILED"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted || s == CheckoutStateFailed
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:           {CheckoutStateAuthenticating},
	CheckoutStateAuthenticating: {CheckoutStateCreatingOrder},
	CheckoutStateCreatingOrder:  {CheckoutStateProcessingLine},
	// ProcessingLine repeats once per cart line.
	CheckoutStateProcessingLine: {CheckoutStateProcessingLine, CheckoutStateCompleted},
}

// CanTransitionTo reports whether a checkout attempt may move from one state
// to another. Every non-terminal state may fail; terminal states are final.
func CanTransitionTo(from, to CheckoutState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == CheckoutStateFailed {
		return true
	}
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
