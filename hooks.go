package onion

import "time"

// Hooks holds optional callbacks for pipeline lifecycle events. All fields
// are nil by default; callers set only the hooks they care about. A Hooks
// value is read without synchronisation once attached to a [Client], so it
// must not be mutated afterwards.
//
// Pattern: Observer; decouples event emission from consumers (logging,
// metrics, alerting) without handlers knowing about observers.
type Hooks struct {
	OnRetry           func(attempt int, err error)
	OnTimeout         func(after time.Duration)
	OnHTTPError       func(status int)
	OnCircuitOpen     func()
	OnCircuitClose    func()
	OnCircuitHalfOpen func()
	OnBulkheadFull    func()
	OnRateLimited     func()
	OnFallbackUsed    func(err error)
}

func (h *Hooks) emitRetry(attempt int, err error) {
	if h != nil && h.OnRetry != nil {
		h.OnRetry(attempt, err)
	}
}

func (h *Hooks) emitTimeout(after time.Duration) {
	if h != nil && h.OnTimeout != nil {
		h.OnTimeout(after)
	}
}

func (h *Hooks) emitHTTPError(status int) {
	if h != nil && h.OnHTTPError != nil {
		h.OnHTTPError(status)
	}
}

func (h *Hooks) emitCircuitOpen() {
	if h != nil && h.OnCircuitOpen != nil {
		h.OnCircuitOpen()
	}
}

func (h *Hooks) emitCircuitClose() {
	if h != nil && h.OnCircuitClose != nil {
		h.OnCircuitClose()
	}
}

func (h *Hooks) emitCircuitHalfOpen() {
	if h != nil && h.OnCircuitHalfOpen != nil {
		h.OnCircuitHalfOpen()
	}
}

func (h *Hooks) emitBulkheadFull() {
	if h != nil && h.OnBulkheadFull != nil {
		h.OnBulkheadFull()
	}
}

func (h *Hooks) emitRateLimited() {
	if h != nil && h.OnRateLimited != nil {
		h.OnRateLimited()
	}
}

func (h *Hooks) emitFallbackUsed(err error) {
	if h != nil && h.OnFallbackUsed != nil {
		h.OnFallbackUsed(err)
	}
}
