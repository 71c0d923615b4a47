package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/TheL321/PrimeBank-sub000/internal/domain"
	"github.com/TheL321/PrimeBank-sub000/internal/locks"
)

func newTestLedger() (*Ledger, *Registry) {
	lm := locks.NewManager()
	reg := NewRegistry(lm)
	reg.Ensure(domain.CentralAccountID, domain.AccountCentral, "", 0)
	return New(reg, lm, NopNotifier{}), reg
}

func balance(t *testing.T, reg *Registry, id string) int64 {
	t.Helper()
	acct, ok := reg.Get(id)
	if !ok {
		t.Fatalf("account %s not found", id)
	}
	return acct.BalanceCents
}

func TestEnsureIsIdempotent(t *testing.T) {
	reg := NewRegistry(locks.NewManager())
	a := reg.Ensure("u:1", domain.AccountPersonal, "u:1", 500)
	b := reg.Ensure("u:1", domain.AccountPersonal, "u:1", 9999)
	if a != b {
		t.Fatal("second Ensure returned a different account")
	}
	if a.BalanceCents != 500 {
		t.Fatalf("initial balance applied twice: got %d, want 500", a.BalanceCents)
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:1", domain.AccountPersonal, "u:1", 0)

	if res, err := l.Deposit("u:1", 1500); err != nil || !res.OK {
		t.Fatalf("deposit failed: %+v, %v", res, err)
	}
	if res, err := l.Withdraw("u:1", 400); err != nil || !res.OK {
		t.Fatalf("withdraw failed: %+v, %v", res, err)
	}
	if got := balance(t, reg, "u:1"); got != 1100 {
		t.Fatalf("balance = %d, want 1100", got)
	}

	res, err := l.Withdraw("u:1", 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Code != CodeInsufficient {
		t.Fatalf("overdraft result = %+v, want insufficient", res)
	}
	if got := balance(t, reg, "u:1"); got != 1100 {
		t.Fatalf("failed withdraw changed balance: %d", got)
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:1", domain.AccountPersonal, "u:1", 0)
	for _, amount := range []int64{0, -1} {
		res, err := l.Deposit("u:1", amount)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.OK || res.Code != CodeAmountLEZero {
			t.Fatalf("Deposit(%d) = %+v, want amount_le_zero", amount, res)
		}
	}
}

func TestTransferFeeThreshold(t *testing.T) {
	l, reg := newTestLedger()

	// Amount exceeds half the starting balance, so the 2% fee applies.
	reg.Ensure("u:big", domain.AccountPersonal, "u:big", 1000)
	reg.Ensure("u:to", domain.AccountPersonal, "u:to", 0)
	res, err := l.Transfer("u:big", "u:to", 600)
	if err != nil || !res.OK {
		t.Fatalf("transfer failed: %+v, %v", res, err)
	}
	if !res.FeeApplied || res.FeeCents != 12 {
		t.Fatalf("fee = %+v, want 12 cents applied", res)
	}
	if got := balance(t, reg, "u:big"); got != 1000-612 {
		t.Fatalf("sender balance = %d, want %d", got, 1000-612)
	}
	if got := balance(t, reg, "u:to"); got != 600 {
		t.Fatalf("receiver balance = %d, want 600", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 12 {
		t.Fatalf("central balance = %d, want 12", got)
	}
}

func TestTransferNoFeeAtHalf(t *testing.T) {
	l, reg := newTestLedger()

	// Amount equal to exactly half the balance is fee-free.
	reg.Ensure("u:half", domain.AccountPersonal, "u:half", 1000)
	reg.Ensure("u:to", domain.AccountPersonal, "u:to", 0)
	res, err := l.Transfer("u:half", "u:to", 500)
	if err != nil || !res.OK {
		t.Fatalf("transfer failed: %+v, %v", res, err)
	}
	if res.FeeApplied || res.FeeCents != 0 {
		t.Fatalf("fee = %+v, want none", res)
	}
	if got := balance(t, reg, "u:half"); got != 500 {
		t.Fatalf("sender balance = %d, want 500", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 0 {
		t.Fatalf("central balance = %d, want 0", got)
	}
}

func TestTransferInsufficientWithFee(t *testing.T) {
	l, reg := newTestLedger()

	// The amount alone is covered, amount + fee is not. Nothing may move.
	reg.Ensure("u:tight", domain.AccountPersonal, "u:tight", 600)
	reg.Ensure("u:to", domain.AccountPersonal, "u:to", 0)
	res, err := l.Transfer("u:tight", "u:to", 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Code != CodeInsufficient {
		t.Fatalf("result = %+v, want insufficient", res)
	}
	if got := balance(t, reg, "u:tight"); got != 600 {
		t.Fatalf("sender balance = %d, want 600 untouched", got)
	}
	if got := balance(t, reg, "u:to"); got != 0 {
		t.Fatalf("receiver balance = %d, want 0", got)
	}
}

func TestTransferRejectsSelfAndMissing(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:1", domain.AccountPersonal, "u:1", 100)

	res, _ := l.Transfer("u:1", "u:1", 50)
	if res.Code != CodeInvalidAccounts {
		t.Fatalf("self transfer = %+v, want invalid_accounts", res)
	}
	res, _ = l.Transfer("u:1", "u:missing", 50)
	if res.Code != CodeAccountNotFound {
		t.Fatalf("missing receiver = %+v, want account_not_found", res)
	}
}

func TestPOSChargeSplitIsExact(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:buyer", domain.AccountPersonal, "u:buyer", 10000)
	reg.Ensure("c:shop", domain.AccountCompany, "u:owner", 0)

	res, err := l.POSCharge("u:buyer", "c:shop", 999)
	if err != nil || !res.OK {
		t.Fatalf("pos charge failed: %+v, %v", res, err)
	}
	// 95% of 999 rounds half-up to 949; central gets the 50-cent residual.
	if got := balance(t, reg, "c:shop"); got != 949 {
		t.Fatalf("company share = %d, want 949", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 50 {
		t.Fatalf("central residual = %d, want 50", got)
	}
	if got := balance(t, reg, "u:buyer"); got != 10000-999 {
		t.Fatalf("buyer balance = %d, want %d", got, 10000-999)
	}
}

func TestPOSChargeInsufficient(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:buyer", domain.AccountPersonal, "u:buyer", 100)
	reg.Ensure("c:shop", domain.AccountCompany, "u:owner", 0)

	res, err := l.POSCharge("u:buyer", "c:shop", 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Code != CodeInsufficient {
		t.Fatalf("result = %+v, want insufficient", res)
	}
	if got := balance(t, reg, "u:buyer"); got != 100 {
		t.Fatalf("buyer debited on failure: %d", got)
	}
}

func TestCashbackCappedAtCentralBalance(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:buyer", domain.AccountPersonal, "u:buyer", 0)
	central, _ := reg.Get(domain.CentralAccountID)
	central.BalanceCents = 30

	res, err := l.ApplyCashbackToBuyer("u:buyer", 100)
	if err != nil || !res.OK {
		t.Fatalf("cashback failed: %+v, %v", res, err)
	}
	if got := balance(t, reg, "u:buyer"); got != 30 {
		t.Fatalf("buyer got %d, want capped grant of 30", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 0 {
		t.Fatalf("central balance = %d, want 0", got)
	}
}

func TestCashbackZeroCentralIsNoOp(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:buyer", domain.AccountPersonal, "u:buyer", 0)

	res, err := l.ApplyCashbackToBuyer("u:buyer", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Code != CodeCentralInsufficient {
		t.Fatalf("result = %+v, want central_insufficient", res)
	}
	if got := balance(t, reg, "u:buyer"); got != 0 {
		t.Fatalf("buyer credited from empty central: %d", got)
	}
}

func TestCentralWithdraw(t *testing.T) {
	l, reg := newTestLedger()
	central, _ := reg.Get(domain.CentralAccountID)
	central.BalanceCents = 1000

	res, err := l.CentralWithdraw("ops", 400)
	if err != nil || !res.OK {
		t.Fatalf("central withdraw failed: %+v, %v", res, err)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 600 {
		t.Fatalf("central balance = %d, want 600", got)
	}

	res, err = l.CentralWithdraw("ops", 601)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Code != CodeInsufficient {
		t.Fatalf("result = %+v, want insufficient", res)
	}
}

func TestMarketPrimaryBuyFees(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:buyer", domain.AccountPersonal, "u:buyer", 20000)
	reg.Ensure("u:issuer", domain.AccountPersonal, "u:issuer", 0)

	res, err := l.MarketPrimaryBuy("u:buyer", "u:issuer", 10000, 250, 500)
	if err != nil || !res.OK {
		t.Fatalf("market buy failed: %+v, %v", res, err)
	}
	// Buyer pays gross + 2.5%; issuer receives gross - 5%; central takes both fees.
	if got := balance(t, reg, "u:buyer"); got != 20000-10250 {
		t.Fatalf("buyer balance = %d, want %d", got, 20000-10250)
	}
	if got := balance(t, reg, "u:issuer"); got != 9500 {
		t.Fatalf("issuer balance = %d, want 9500", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 750 {
		t.Fatalf("central balance = %d, want 750", got)
	}
}

func TestMarketPrimaryBuyInsufficient(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:buyer", domain.AccountPersonal, "u:buyer", 10000)
	reg.Ensure("u:issuer", domain.AccountPersonal, "u:issuer", 0)

	// Gross alone fits, gross + buyer fee does not.
	res, err := l.MarketPrimaryBuy("u:buyer", "u:issuer", 10000, 250, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Code != CodeInsufficient {
		t.Fatalf("result = %+v, want insufficient", res)
	}
	if got := balance(t, reg, "u:buyer"); got != 10000 {
		t.Fatalf("buyer balance changed on failure: %d", got)
	}
}

func TestConcurrentTransfersConserveMoney(t *testing.T) {
	l, reg := newTestLedger()
	ids := []string{"u:a", "u:b", "u:c", "u:d"}
	const initial = int64(100000)
	for _, id := range ids {
		reg.Ensure(id, domain.AccountPersonal, id, initial)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := ids[i%len(ids)]
			to := ids[(i+1)%len(ids)]
			for j := 0; j < 200; j++ {
				if _, err := l.Transfer(from, to, 7); err != nil {
					t.Errorf("transfer error: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	var total int64
	for _, id := range ids {
		b := balance(t, reg, id)
		if b < 0 {
			t.Fatalf("account %s went negative: %d", id, b)
		}
		total += b
	}
	total += balance(t, reg, domain.CentralAccountID)
	if total != initial*int64(len(ids)) {
		t.Fatalf("money not conserved: total = %d, want %d", total, initial*int64(len(ids)))
	}
}

func TestConcurrentMixedOperationsAreDeadlockFree(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:a", domain.AccountPersonal, "u:a", 1_000_000)
	reg.Ensure("u:b", domain.AccountPersonal, "u:b", 1_000_000)
	reg.Ensure("c:shop", domain.AccountCompany, "u:b", 0)

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		ops := []func(){
			func() { l.Transfer("u:a", "u:b", 3) },
			func() { l.Transfer("u:b", "u:a", 3) },
			func() { l.POSCharge("u:a", "c:shop", 5) },
			func() { l.ApplyCashbackToBuyer("u:b", 2) },
			func() { l.Deposit("u:a", 1) },
			func() { l.Withdraw("u:b", 1) },
		}
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 300; j++ {
					ops[(i+j)%len(ops)]()
				}
			}(i)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("mixed operation stress did not complete: likely deadlock")
	}
}

func TestTransferRejectsCentralEndpoint(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:payer", domain.AccountPersonal, "u:payer", 1000)
	reg.Ensure("u:payee", domain.AccountPersonal, "u:payee", 0)

	res, err := l.Transfer("u:payer", domain.CentralAccountID, 600)
	if err != nil {
		t.Fatalf("transfer to central errored: %v", err)
	}
	if res.OK || res.Code != CodeInvalidAccounts {
		t.Fatalf("transfer to central accepted: %+v", res)
	}
	if got := balance(t, reg, "u:payer"); got != 1000 {
		t.Fatalf("payer balance changed: %d, want 1000", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 0 {
		t.Fatalf("central balance changed: %d, want 0", got)
	}

	res, err = l.Transfer(domain.CentralAccountID, "u:payee", 600)
	if err != nil {
		t.Fatalf("transfer from central errored: %v", err)
	}
	if res.OK || res.Code != CodeInvalidAccounts {
		t.Fatalf("transfer from central accepted: %+v", res)
	}
	if got := balance(t, reg, "u:payee"); got != 0 {
		t.Fatalf("payee balance changed: %d, want 0", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 0 {
		t.Fatalf("central balance changed: %d, want 0", got)
	}
}

func TestCentralCannotActAsCounterparty(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:buyer", domain.AccountPersonal, "u:buyer", 100000)
	reg.Ensure("c:shop", domain.AccountCompany, "u:owner", 0)

	if res, err := l.MarketPrimaryBuy(domain.CentralAccountID, "u:buyer", 1000, 250, 500); err != nil || res.OK || res.Code != CodeInvalidAccounts {
		t.Fatalf("central as market buyer: %+v, %v", res, err)
	}
	if res, err := l.MarketPrimaryBuy("u:buyer", domain.CentralAccountID, 1000, 250, 500); err != nil || res.OK || res.Code != CodeInvalidAccounts {
		t.Fatalf("central as market seller: %+v, %v", res, err)
	}
	if res, err := l.POSCharge(domain.CentralAccountID, "c:shop", 1000); err != nil || res.OK || res.Code != CodeInvalidAccounts {
		t.Fatalf("central as POS buyer: %+v, %v", res, err)
	}
	if res, err := l.POSCharge("u:buyer", domain.CentralAccountID, 1000); err != nil || res.OK || res.Code != CodeInvalidAccounts {
		t.Fatalf("central as POS company: %+v, %v", res, err)
	}
	if res, err := l.ApplyCashbackToBuyer(domain.CentralAccountID, 100); err != nil || res.OK || res.Code != CodeInvalidAccounts {
		t.Fatalf("central as cashback recipient: %+v, %v", res, err)
	}
	if got := balance(t, reg, "u:buyer"); got != 100000 {
		t.Fatalf("buyer balance changed: %d, want 100000", got)
	}
	if got := balance(t, reg, domain.CentralAccountID); got != 0 {
		t.Fatalf("central balance changed: %d, want 0", got)
	}
}

func TestEnsureClampsNegativeInitialBalance(t *testing.T) {
	reg := NewRegistry(locks.NewManager())
	acct := reg.Ensure("u:neg", domain.AccountPersonal, "u:neg", -500)
	if acct.BalanceCents != 0 {
		t.Fatalf("negative initial balance stored: %d, want 0", acct.BalanceCents)
	}
}

func TestSnapshotDuringConcurrentDeposits(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:1", domain.AccountPersonal, "u:1", 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if _, err := l.Deposit("u:1", 7); err != nil {
				t.Errorf("deposit error: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		for _, snap := range reg.Snapshot() {
			if snap.ID != "u:1" {
				continue
			}
			if snap.BalanceCents%7 != 0 {
				t.Errorf("snapshot caught a half-applied deposit: %d", snap.BalanceCents)
			}
			if int64(len(snap.History))*7 != snap.BalanceCents {
				t.Errorf("history and balance disagree: %d records, balance %d",
					len(snap.History), snap.BalanceCents)
			}
		}
	}
	<-done

	if got := balance(t, reg, "u:1"); got != 7000 {
		t.Fatalf("final balance = %d, want 7000", got)
	}
}

func TestCopyIsDetachedFromLiveAccount(t *testing.T) {
	l, reg := newTestLedger()
	reg.Ensure("u:1", domain.AccountPersonal, "u:1", 0)
	if _, err := l.Deposit("u:1", 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	copied, ok := reg.Copy("u:1")
	if !ok {
		t.Fatal("copy missed an existing account")
	}
	copied.BalanceCents = -1
	copied.History[0].AmountCents = -1
	if got := balance(t, reg, "u:1"); got != 100 {
		t.Fatalf("live balance mutated through the copy: %d", got)
	}
	live, _ := reg.Get("u:1")
	if live.History[0].AmountCents != 100 {
		t.Fatalf("live history mutated through the copy: %+v", live.History[0])
	}
}
