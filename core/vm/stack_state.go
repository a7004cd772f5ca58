package vm

import (
	"github.com/holiman/uint256"

	"github.com/rentevm/rentevm/core/types"
)

// Backend exposes the transaction vicinity and committed account reads the
// engine needs from the ledger collaborator.
type Backend interface {
	Origin() types.Address
	GasPrice() *uint256.Int
	BlockHash(number uint64) types.Hash
	BlockNumber() *uint256.Int
	BlockCoinbase() types.Address
	BlockTimestamp() uint64
	BlockDifficulty() *uint256.Int
	BlockGasLimit() uint64
}

// StackState is the layered ledger the executor drives. Each Enter pushes an
// isolated substate; exactly one of ExitCommit/ExitRevert/ExitDiscard pops
// it. Reads see the overlay of every live frame; writes land in the top
// frame only, so reverting a frame rolls its writes back wholesale.
type StackState interface {
	Backend

	// Meta returns the top frame's accounting metadata.
	Meta() *SubstateMeta
	// Enter pushes a child frame with the forwarded gas budget.
	Enter(gasLimit uint64, static bool)
	ExitCommit() error
	ExitRevert() error
	ExitDiscard() error

	Balance(addr types.Address) *uint256.Int
	Nonce(addr types.Address) uint64
	Code(addr types.Address) []byte
	Storage(addr types.Address, key types.Hash) types.Hash
	Exists(addr types.Address) bool
	Deleted(addr types.Address) bool

	SetStorage(addr types.Address, key, value types.Hash)
	// ResetStorage clears every slot of addr within the current frame,
	// shadowing committed state. Used defensively on CREATE address reuse.
	ResetStorage(addr types.Address)
	// SetCode stores code for a freshly created contract and records its
	// maintainer from the frame stack's caller provenance.
	SetCode(addr types.Address, code []byte) error
	IncNonce(addr types.Address)
	Transfer(transfer Transfer) error
	ResetBalance(addr types.Address)
	SetDeleted(addr types.Address)
	Log(addr types.Address, topics []types.Hash, data []byte)
	Touch(addr types.Address)
}

// StorageLog attributes a committed frame's own net storage delta to its
// target contract. The runner turns these into deposit movements.
type StorageLog struct {
	Contract types.Address
	Used     int64
}

// TxState extends StackState with the transaction-scoped deposit ledger the
// runner reconciles after execution.
type TxState interface {
	StackState

	// CanCallContract gates calls to unpublished contracts: only the
	// maintainer may call until the contract is published.
	CanCallContract(caller, contract types.Address) bool

	// ReserveStorage locks limit bytes worth of deposit from origin's free
	// balance before execution starts.
	ReserveStorage(origin types.Address, limit uint32) error
	// ChargeStorage moves reserved deposit between origin and contract for
	// a signed byte delta, updating the contract's storage-usage counter.
	ChargeStorage(origin, contract types.Address, delta int64) error
	// UnreserveStorage releases origin's remaining reserved deposit.
	UnreserveStorage(origin types.Address) error
	// RemoveContract deletes a self-destructed contract, returning its
	// reserved deposit to dest.
	RemoveContract(contract, dest types.Address) error

	StorageLogs() []StorageLog
	Deletes() []types.Address
	Logs() []types.Log
}
