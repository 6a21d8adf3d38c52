package dispatch

import "context"

// BalanceSource reports wallet balances for percentage-of-balance sizing.
type BalanceSource interface {
	// FirstWalletBalance returns the SOL balance of the first wallet in
	// the list, which is the wallet percentage sizing is computed from.
	FirstWalletBalance(ctx context.Context, walletIDs []string) (float64, error)
}

// StaticBalances is a fixed wallet-to-balance table. It backs dry runs
// and tests; live balance polling sits behind the same interface.
type StaticBalances map[string]float64

var _ BalanceSource = (StaticBalances)(nil)

// FirstWalletBalance returns the mapped balance of the first wallet,
// or zero when the list is empty or the wallet is unknown.
func (b StaticBalances) FirstWalletBalance(_ context.Context, walletIDs []string) (float64, error) {
	if len(walletIDs) == 0 {
		return 0, nil
	}
	return b[walletIDs[0]], nil
}
