package credits

import (
	"errors"
	"sync"
	"testing"
)

type testBalanceStore struct {
	mu       sync.Mutex
	balances map[string]int
	failNext error
}

func newTestBalanceStore(userID string, balance int) *testBalanceStore {
	return &testBalanceStore{balances: map[string]int{userID: balance}}
}

func (s *testBalanceStore) AdjustCredits(userID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return 0, err
	}
	balance, ok := s.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	balance += delta
	s.balances[userID] = balance
	return balance, nil
}

func (s *testBalanceStore) balance(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

func TestCostTableCoversEveryAction(t *testing.T) {
	for _, action := range Actions() {
		cost, err := Cost(action)
		if err != nil {
			t.Fatalf("cost for %s: %v", action, err)
		}
		if cost <= 0 {
			t.Fatalf("cost for %s must be positive, got %d", action, cost)
		}
	}
	if _, err := Cost(Action("NOT_AN_ACTION")); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestDebitSufficientBalance(t *testing.T) {
	cost, _ := Cost(ActionAudioGenerate)
	store := newTestBalanceStore("u-1", cost+5)
	ledger := NewLedger(store)

	remaining, err := ledger.Debit("u-1", ActionAudioGenerate)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if remaining != 5 {
		t.Fatalf("expected remaining 5, got %d", remaining)
	}
	if store.balance("u-1") != 5 {
		t.Fatalf("expected stored balance 5, got %d", store.balance("u-1"))
	}
}

func TestDebitInsufficientBalanceLeavesBalanceUnchanged(t *testing.T) {
	store := newTestBalanceStore("u-1", 10)
	ledger := NewLedger(store)

	_, err := ledger.Debit("u-1", ActionAudioGenerate) // costs 15
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if store.balance("u-1") != 10 {
		t.Fatalf("balance must be restored to 10, got %d", store.balance("u-1"))
	}
}

func TestDebitExactBalance(t *testing.T) {
	cost, _ := Cost(ActionCTRPredict)
	store := newTestBalanceStore("u-1", cost)
	ledger := NewLedger(store)

	remaining, err := ledger.Debit("u-1", ActionCTRPredict)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}
}

func TestDebitMissingUser(t *testing.T) {
	store := newTestBalanceStore("u-1", 100)
	ledger := NewLedger(store)

	if _, err := ledger.Debit("nobody", ActionCTRPredict); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDebitStoreFailureDoesNotReportInsufficient(t *testing.T) {
	store := newTestBalanceStore("u-1", 100)
	store.failNext = errors.New("connection reset")
	ledger := NewLedger(store)

	_, err := ledger.Debit("u-1", ActionCTRPredict)
	if err == nil || errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected generic store failure, got %v", err)
	}
	if store.balance("u-1") != 100 {
		t.Fatalf("balance must be untouched on store failure, got %d", store.balance("u-1"))
	}
}

func TestRefundRestoresDebit(t *testing.T) {
	cost, _ := Cost(ActionGapsAnalysis)
	store := newTestBalanceStore("u-1", cost)
	ledger := NewLedger(store)

	if _, err := ledger.Debit("u-1", ActionGapsAnalysis); err != nil {
		t.Fatalf("debit: %v", err)
	}
	balance, err := ledger.Refund("u-1", ActionGapsAnalysis)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if balance != cost {
		t.Fatalf("expected balance %d after refund, got %d", cost, balance)
	}
}

func TestAddCredits(t *testing.T) {
	store := newTestBalanceStore("u-1", 5)
	ledger := NewLedger(store)

	balance, err := ledger.Add("u-1", 500)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if balance != 505 {
		t.Fatalf("expected balance 505, got %d", balance)
	}
	if _, err := ledger.Add("u-1", 0); err == nil {
		t.Fatalf("expected error for non-positive amount")
	}
	if _, err := ledger.Add("u-1", -3); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	const workers = 8
	cost, _ := Cost(ActionCTRPredict)
	// Enough for exactly workers-1 debits.
	store := newTestBalanceStore("u-1", cost*(workers-1))
	ledger := NewLedger(store)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit("u-1", ActionCTRPredict)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientCredits):
			rejections++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if successes != workers-1 || rejections != 1 {
		t.Fatalf("expected %d successes and 1 rejection, got %d/%d", workers-1, successes, rejections)
	}
	if store.balance("u-1") != 0 {
		t.Fatalf("expected final balance 0, got %d", store.balance("u-1"))
	}
}

func TestConcurrentDebitsExactBalance(t *testing.T) {
	cost, _ := Cost(ActionCTRPredict)
	store := newTestBalanceStore("u-1", cost)
	ledger := NewLedger(store)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit("u-1", ActionCTRPredict)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrInsufficientCredits) {
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	if store.balance("u-1") != 0 {
		t.Fatalf("expected final balance 0, got %d", store.balance("u-1"))
	}
}
