package liquidity

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"fusdpool/crypto"
)

const defaultLedgerPageLimit = 200

var (
	accountKeyPrefix = []byte("liquidity/account/")
	indexKeyPrefix   = []byte("liquidity/accounts/")
	indexCountKey    = []byte("liquidity/accounts-count")
	totalsKey        = []byte("liquidity/totals")
)

// Storage captures the state manager capabilities used by the ledger and the
// parameter store.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedAccount struct {
	Owner            []byte
	Balance          string
	LastAccrualEpoch uint64
}

type storedTotals struct {
	StableOutstanding string
	FeesCollected     string
	RewardsMinted     string
}

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountKeyPrefix)+len(addr))
	copy(buf, accountKeyPrefix)
	copy(buf[len(accountKeyPrefix):], addr)
	return buf
}

// indexKey addresses the owner stored at position n of the ledger order.
func indexKey(n uint64) []byte {
	return strconv.AppendUint(append([]byte(nil), indexKeyPrefix...), n, 10)
}

func parseAmount(field, value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("liquidity: decode %s: %w", field, err)
	}
	return amount, nil
}

func amountDec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func checkWidth(v *uint256.Int) error {
	if v != nil && v.BitLen() > maxRateBits {
		return ErrAmountOverflow
	}
	return nil
}

// Ledger owns every AccountEntry. Owners are indexed in first-deposit order,
// which is the order batch accrual and cursors walk. The index is a count
// record plus one key per position, so a page reads only its own slice.
type Ledger struct {
	store Storage
}

// NewLedger binds a ledger to the supplied storage.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// Get loads the entry for addr. The boolean reports whether it exists.
func (l *Ledger) Get(addr crypto.Address) (*AccountEntry, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, ErrNilState
	}
	var stored storedAccount
	ok, err := l.store.KVGet(accountKey(addr.Bytes()), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	balance, err := parseAmount("balance", stored.Balance)
	if err != nil {
		return nil, false, err
	}
	return &AccountEntry{
		Owner:            crypto.NewAddress(crypto.AccountPrefix, stored.Owner),
		Balance:          balance,
		LastAccrualEpoch: stored.LastAccrualEpoch,
	}, true, nil
}

// Put stores the entry, indexing the owner on first write.
func (l *Ledger) Put(entry *AccountEntry) error {
	if l == nil || l.store == nil {
		return ErrNilState
	}
	if entry == nil || entry.Owner.IsZero() {
		return fmt.Errorf("liquidity: account owner required")
	}
	if err := checkWidth(entry.Balance); err != nil {
		return err
	}
	key := accountKey(entry.Owner.Bytes())
	exists, err := l.store.KVGet(key, nil)
	if err != nil {
		return err
	}
	if !exists {
		count, err := l.count()
		if err != nil {
			return err
		}
		if err := l.store.KVPut(indexKey(count), entry.Owner.Bytes()); err != nil {
			return err
		}
		if err := l.store.KVPut(indexCountKey, count+1); err != nil {
			return err
		}
	}
	return l.store.KVPut(key, storedAccount{
		Owner:            entry.Owner.Bytes(),
		Balance:          amountDec(entry.Balance),
		LastAccrualEpoch: entry.LastAccrualEpoch,
	})
}

func (l *Ledger) count() (uint64, error) {
	var count uint64
	if _, err := l.store.KVGet(indexCountKey, &count); err != nil {
		return 0, fmt.Errorf("liquidity: load account count: %w", err)
	}
	return count, nil
}

func (l *Ledger) owners(from, to uint64) ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, to-from)
	for n := from; n < to; n++ {
		var raw []byte
		ok, err := l.store.KVGet(indexKey(n), &raw)
		if err != nil {
			return nil, err
		}
		if !ok || len(raw) != crypto.AddressLength {
			return nil, fmt.Errorf("liquidity: corrupt account index at %d", n)
		}
		out = append(out, crypto.NewAddress(crypto.AccountPrefix, raw))
	}
	return out, nil
}

// Owners returns every indexed owner in ledger order.
func (l *Ledger) Owners() ([]crypto.Address, error) {
	if l == nil || l.store == nil {
		return nil, ErrNilState
	}
	count, err := l.count()
	if err != nil {
		return nil, err
	}
	return l.owners(0, count)
}

// Page returns up to limit owners starting at cursor together with the cursor
// of the next page. An empty next cursor means the end was reached.
func (l *Ledger) Page(cursor string, limit int) ([]crypto.Address, string, error) {
	if l == nil || l.store == nil {
		return nil, "", ErrNilState
	}
	if limit <= 0 {
		limit = defaultLedgerPageLimit
	}
	var offset uint64
	if cursor != "" {
		off, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
		}
		offset = off
	}
	count, err := l.count()
	if err != nil {
		return nil, "", err
	}
	if offset >= count {
		return []crypto.Address{}, "", nil
	}
	end := count
	if remaining := count - offset; remaining > uint64(limit) {
		end = offset + uint64(limit)
	}
	owners, err := l.owners(offset, end)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if end < count {
		next = strconv.FormatUint(end, 10)
	}
	return owners, next, nil
}

// Count returns the number of indexed owners.
func (l *Ledger) Count() (uint64, error) {
	if l == nil || l.store == nil {
		return 0, ErrNilState
	}
	return l.count()
}

// Totals loads the stable-side pool books. NativeLocked is left nil; the
// engine fills it from the native token balance of the pool account.
func (l *Ledger) Totals() (*PoolTotals, error) {
	if l == nil || l.store == nil {
		return nil, ErrNilState
	}
	var stored storedTotals
	if _, err := l.store.KVGet(totalsKey, &stored); err != nil {
		return nil, err
	}
	outstanding, err := parseAmount("outstanding", stored.StableOutstanding)
	if err != nil {
		return nil, err
	}
	fees, err := parseAmount("fees", stored.FeesCollected)
	if err != nil {
		return nil, err
	}
	minted, err := parseAmount("rewards", stored.RewardsMinted)
	if err != nil {
		return nil, err
	}
	return &PoolTotals{StableOutstanding: outstanding, FeesCollected: fees, RewardsMinted: minted}, nil
}

// PutTotals stores the stable-side pool books.
func (l *Ledger) PutTotals(t *PoolTotals) error {
	if l == nil || l.store == nil {
		return ErrNilState
	}
	if t == nil {
		return fmt.Errorf("liquidity: totals must not be nil")
	}
	return l.store.KVPut(totalsKey, storedTotals{
		StableOutstanding: amountDec(t.StableOutstanding),
		FeesCollected:     amountDec(t.FeesCollected),
		RewardsMinted:     amountDec(t.RewardsMinted),
	})
}
