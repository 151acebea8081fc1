package ryft

import (
	"fmt"

	"ryft/crypto"
)

// accountOpener is implemented by token gateways that require vault accounts
// to be opened before they can receive transfers.
type accountOpener interface {
	OpenAccount(addr, owner crypto.Address) error
}

// Initialize creates the pool ledger. The caller becomes the administrator.
// Vault token accounts are opened under the module authority.
func (e *Engine) Initialize(admin, treasury crypto.Address, feeRateBps uint64) (*GlobalState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ok, err := e.state.KVGet(globalStateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("ryft: load global state: %w", err)
	}
	if ok {
		return nil, ErrAlreadyInitialized
	}
	global := &GlobalState{
		Admin:      admin,
		FeeRateBps: feeRateBps,
		Phase:      PhaseIdle,
		Treasury:   treasury,
		AllowList:  []crypto.Address{},
	}
	if opener, ok := e.tokens.(accountOpener); ok {
		for _, vault := range e.accounts.Vaults() {
			if err := opener.OpenAccount(vault, e.accounts.Authority); err != nil {
				return nil, fmt.Errorf("ryft: open vault %s: %w", vault, err)
			}
		}
	}
	if err := e.storeGlobal(global); err != nil {
		return nil, err
	}
	e.emit(newInitializedEvent(global))
	return global.Clone(), nil
}

// UpdateFeeRate replaces the flash loan fee rate. Only the administrator may
// call it and the new rate is not bounded.
func (e *Engine) UpdateFeeRate(caller crypto.Address, feeRateBps uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if global.Admin != caller {
		return ErrUnauthorized
	}
	previous := global.FeeRateBps
	global.FeeRateBps = feeRateBps
	if err := e.storeGlobal(global); err != nil {
		return err
	}
	e.emit(newFeeRateUpdatedEvent(previous, feeRateBps))
	return nil
}

// AddToAllowList permits borrower to take flash loans once the allow-list is
// in force. Adding an existing member is a no-op.
func (e *Engine) AddToAllowList(caller, borrower crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if global.Admin != caller {
		return ErrUnauthorized
	}
	if global.allowListIndex(borrower) >= 0 {
		return nil
	}
	if len(global.AllowList) >= MaxAllowListSize {
		return ErrAllowListFull
	}
	global.AllowList = append(global.AllowList, borrower)
	if err := e.storeGlobal(global); err != nil {
		return err
	}
	e.emit(newAllowListUpdatedEvent(borrower, true, len(global.AllowList)))
	return nil
}

// RemoveFromAllowList revokes borrower. Removing the last member lifts the
// restriction entirely.
func (e *Engine) RemoveFromAllowList(caller, borrower crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if global.Admin != caller {
		return ErrUnauthorized
	}
	idx := global.allowListIndex(borrower)
	if idx < 0 {
		return nil
	}
	global.AllowList = append(global.AllowList[:idx], global.AllowList[idx+1:]...)
	if err := e.storeGlobal(global); err != nil {
		return err
	}
	e.emit(newAllowListUpdatedEvent(borrower, false, len(global.AllowList)))
	return nil
}
