package credits

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCredits is returned when a debit would push the balance
	// below zero. The balance is left unchanged.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrUserNotFound is returned when the balance row does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// BalanceStore applies a signed delta to a user's balance in a single atomic
// operation and returns the post-adjustment balance. It must return
// ErrUserNotFound when the user row is missing.
type BalanceStore interface {
	AdjustCredits(userID string, delta int) (int, error)
}

// Ledger gates metered actions behind an atomic debit. There is no
// reservation or hold: a debit is final the moment it succeeds, and
// compensation for downstream failures is the caller's job (via Refund).
type Ledger struct {
	store BalanceStore
}

func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{store: store}
}

// Debit subtracts the action's cost from the user's balance. The decrement is
// unconditional; when the resulting balance is negative a compensating
// increment restores it and ErrInsufficientCredits is reported. Between the
// two writes the stored balance is transiently negative; nothing in this
// system reads balances on that path, and cross-process observation of the
// window is an accepted weakness, not a guarantee.
func (l *Ledger) Debit(userID string, action Action) (int, error) {
	cost, err := Cost(action)
	if err != nil {
		return 0, err
	}
	remaining, err := l.store.AdjustCredits(userID, -cost)
	if err != nil {
		return 0, fmt.Errorf("debit %s: %w", action, err)
	}
	if remaining < 0 {
		if _, err := l.store.AdjustCredits(userID, cost); err != nil {
			return 0, fmt.Errorf("revert debit %s: %w", action, err)
		}
		return 0, ErrInsufficientCredits
	}
	return remaining, nil
}

// Refund restores a prior successful debit of the same action. Call sites use
// it when the downstream external call fails after the debit succeeded.
func (l *Ledger) Refund(userID string, action Action) (int, error) {
	cost, err := Cost(action)
	if err != nil {
		return 0, err
	}
	balance, err := l.store.AdjustCredits(userID, cost)
	if err != nil {
		return 0, fmt.Errorf("refund %s: %w", action, err)
	}
	return balance, nil
}

// Add credits a purchased amount. It only ever increments, so it needs no
// conflicting-write protection beyond the store's atomic adjustment.
func (l *Ledger) Add(userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	balance, err := l.store.AdjustCredits(userID, amount)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return balance, nil
}
