package bank

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"

	"ryft/crypto"
)

var (
	errNilStore = errors.New("bank: storage unavailable")

	// ErrAccountNotFound is returned when the source token account does not
	// exist.
	ErrAccountNotFound = errors.New("bank: token account not found")
	// ErrOwnerMismatch marks transfers whose authority does not own the source
	// account.
	ErrOwnerMismatch = errors.New("bank: authority does not own source account")
	// ErrInsufficientFunds marks transfers exceeding the source balance.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrBalanceOverflow marks credits that would overflow the destination.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
)

// storage abstracts the subset of state manager functionality required by the
// token ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var tokenAccountPrefix = []byte("bank/account/")

func tokenAccountKey(addr crypto.Address) []byte {
	key := make([]byte, 0, len(tokenAccountPrefix)+crypto.AddressLength)
	key = append(key, tokenAccountPrefix...)
	return append(key, addr[:]...)
}

// Account is a token balance controlled by Owner.
type Account struct {
	Owner   crypto.Address
	Balance uint64
}

// Ledger moves balances between token accounts. Every transfer either applies
// in full or leaves both accounts untouched.
type Ledger struct {
	store storage
}

// NewLedger binds a ledger to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

// Account returns the token account stored at addr. The boolean reports
// whether the account exists.
func (l *Ledger) Account(addr crypto.Address) (*Account, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, errNilStore
	}
	var acc Account
	ok, err := l.store.KVGet(tokenAccountKey(addr), &acc)
	if err != nil {
		return nil, false, fmt.Errorf("bank: load account: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &acc, true, nil
}

// BalanceOf returns the balance held at addr. Missing accounts hold zero.
func (l *Ledger) BalanceOf(addr crypto.Address) (uint64, error) {
	acc, ok, err := l.Account(addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return acc.Balance, nil
}

// OpenAccount creates an empty account at addr controlled by owner. Existing
// accounts keep their balance and owner.
func (l *Ledger) OpenAccount(addr, owner crypto.Address) error {
	_, ok, err := l.Account(addr)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return l.put(addr, &Account{Owner: owner})
}

// Credit adds amount to addr, opening a self-owned account when necessary.
// It is reserved for genesis allocations.
func (l *Ledger) Credit(addr crypto.Address, amount uint64) error {
	acc, err := l.loadOrOpen(addr)
	if err != nil {
		return err
	}
	next, overflow := math.SafeAdd(acc.Balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	acc.Balance = next
	return l.put(addr, acc)
}

// Transfer moves amount from one account to another on behalf of authority.
func (l *Ledger) Transfer(from, to, authority crypto.Address, amount uint64) error {
	source, ok, err := l.Account(from)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, from)
	}
	if source.Owner != authority {
		return ErrOwnerMismatch
	}
	if source.Balance < amount {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	dest, err := l.loadOrOpen(to)
	if err != nil {
		return err
	}
	credited, overflow := math.SafeAdd(dest.Balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	source.Balance -= amount
	dest.Balance = credited
	if err := l.put(from, source); err != nil {
		return err
	}
	return l.put(to, dest)
}

func (l *Ledger) loadOrOpen(addr crypto.Address) (*Account, error) {
	acc, ok, err := l.Account(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Account{Owner: addr}, nil
	}
	return acc, nil
}

func (l *Ledger) put(addr crypto.Address, acc *Account) error {
	if err := l.store.KVPut(tokenAccountKey(addr), acc); err != nil {
		return fmt.Errorf("bank: store account: %w", err)
	}
	return nil
}
