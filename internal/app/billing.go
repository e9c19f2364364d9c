package app

import (
	"context"
	"errors"
	"fmt"

	"creatorhub/pkg/billing"
)

// ListPacks returns the purchasable credit packs.
func (a *App) ListPacks(ctx context.Context) []billing.Pack {
	return billing.Packs()
}

// CreatePaymentIntent opens a payment for a credit pack on behalf of the
// caller.
func (a *App) CreatePaymentIntent(ctx context.Context, userID, packID string) (billing.Intent, error) {
	if a.payments == nil {
		return billing.Intent{}, errors.New("payments are not configured")
	}
	pack, err := billing.PackByID(packID)
	if err != nil {
		return billing.Intent{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	intent, err := a.payments.CreateIntent(ctx, userID, pack)
	if err != nil {
		return billing.Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return intent, nil
}

// PurchaseResult is the credited pack and the new balance.
type PurchaseResult struct {
	Pack    billing.Pack `json:"pack"`
	Credits int          `json:"credits"`
}

// CreditPurchase verifies a captured payment and adds the pack's credits to
// the caller's balance.
func (a *App) CreditPurchase(ctx context.Context, userID, intentID string) (PurchaseResult, error) {
	if a.payments == nil {
		return PurchaseResult{}, errors.New("payments are not configured")
	}
	intent, err := a.payments.GetIntent(ctx, intentID)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("load payment intent: %w", err)
	}
	if intent.Status != billing.IntentStatusSucceeded {
		return PurchaseResult{}, ErrPaymentNotCompleted
	}
	if intent.UserID != userID {
		return PurchaseResult{}, ErrPaymentMismatch
	}
	pack, err := billing.PackByID(intent.PackID)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("payment references unknown pack %q", intent.PackID)
	}
	balance, err := a.ledger.Add(userID, pack.Credits)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("credit purchase: %w", err)
	}
	return PurchaseResult{Pack: pack, Credits: balance}, nil
}
