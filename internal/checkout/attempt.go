package checkout

import (
	"fmt"

	d "github.com/fjod/go_cart/storefront/internal/domain"
)

// StateHook observes every transition of an attempt. line is the index of the
// cart line being processed, or -1 outside ProcessingLine.
type StateHook func(state d.CheckoutState, line int)

// attempt tracks one checkout through its state machine.
type attempt struct {
	state d.CheckoutState
	line  int
	hook  StateHook
}

func newAttempt(hook StateHook) *attempt {
	return &attempt{state: d.CheckoutStateIdle, line: -1, hook: hook}
}

func (a *attempt) advance(to d.CheckoutState) error {
	if !d.CanTransitionTo(a.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.state, to)
	}
	a.state = to
	if to == d.CheckoutStateProcessingLine {
		a.line++
	} else {
		a.line = -1
	}
	if a.hook != nil {
		a.hook(a.state, a.line)
	}
	return nil
}

func (a *attempt) fail() {
	if a.state.IsTerminal() {
		return
	}
	_ = a.advance(d.CheckoutStateFailed)
}
