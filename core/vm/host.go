package vm

import (
	"github.com/holiman/uint256"

	"github.com/rentevm/rentevm/core/types"
)

// Host is the environment-query interface handed to the bytecode
// interpreter: account and block reads, plus the mutation hooks the
// interpreter invokes as opcode side effects. StackExecutor implements it.
type Host interface {
	// Account queries. Reads of mirrored system addresses resolve against
	// the canonical token predeploy.
	Balance(addr types.Address) *uint256.Int
	Code(addr types.Address) []byte
	CodeHash(addr types.Address) types.Hash
	CodeSize(addr types.Address) int
	Storage(addr types.Address, key types.Hash) types.Hash
	// OriginalStorage always reports the zero hash: there is no
	// pre-transaction snapshot, which under-counts SSTORE reset refunds.
	// Preserved behavior, downstream fees depend on it.
	OriginalStorage(addr types.Address, key types.Hash) types.Hash
	Exists(addr types.Address) bool
	// Deleted always reports true so the gas-cost calculator never grants
	// a suicide refund.
	Deleted(addr types.Address) bool

	// Frame and block metadata.
	GasLeft() uint64
	GasPrice() *uint256.Int
	Origin() types.Address
	BlockHash(number uint64) types.Hash
	BlockNumber() *uint256.Int
	BlockCoinbase() types.Address
	BlockTimestamp() uint64
	BlockDifficulty() *uint256.Int
	BlockGasLimit() uint64
	ChainID() uint64

	// Gas accounting for dynamically costed opcodes: charged against the
	// current frame's meter before the work is attempted.
	RecordCost(amount uint64) error
	RecordRefund(amount uint64)

	// Mutation hooks.
	SetStorage(addr types.Address, key, value types.Hash) error
	Log(addr types.Address, topics []types.Hash, data []byte) error
	MarkDelete(addr, beneficiary types.Address) error

	// Reentrant operations: the CALL and CREATE opcode families recurse
	// through these. targetGas nil means "all available".
	Call(target types.Address, transfer *Transfer, input []byte, targetGas *uint64, static bool, ctx Context) (ExitReason, []byte)
	Create(caller types.Address, scheme CreateScheme, value *uint256.Int, initCode []byte, targetGas *uint64) (ExitReason, types.Address, []byte)
}
