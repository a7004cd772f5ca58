package vm

import (
	"github.com/holiman/uint256"

	"github.com/rentevm/rentevm/core/types"
)

// Context is the execution context the interpreter observes: the apparent
// caller, the executing address and the apparent value. These may differ
// from the physical transfer parties (DELEGATECALL-style semantics hook in
// here).
type Context struct {
	Caller        types.Address
	Address       types.Address
	ApparentValue *uint256.Int
}

// Transfer is a native-balance movement applied atomically with the frame it
// accompanies. It is executed exactly once, at frame entry.
type Transfer struct {
	Source types.Address
	Target types.Address
	Value  *uint256.Int
}

// CreateSchemeKind selects the contract address derivation.
type CreateSchemeKind uint8

const (
	// CreateLegacy derives from the caller's address and nonce.
	CreateLegacy CreateSchemeKind = iota
	// CreateSalted derives from caller, salt and init-code hash (CREATE2).
	CreateSalted
	// CreateFixed deploys to a caller-chosen address, bypassing derivation.
	// Used for privileged network-contract deployment.
	CreateFixed
)

// CreateScheme describes how a CREATE target address is derived.
type CreateScheme struct {
	Kind     CreateSchemeKind
	Caller   types.Address
	CodeHash types.Hash
	Salt     types.Hash
	Address  types.Address
}

// LegacyCreateScheme returns nonce-based derivation for caller.
func LegacyCreateScheme(caller types.Address) CreateScheme {
	return CreateScheme{Kind: CreateLegacy, Caller: caller}
}

// SaltedCreateScheme returns CREATE2 derivation for caller.
func SaltedCreateScheme(caller types.Address, codeHash, salt types.Hash) CreateScheme {
	return CreateScheme{Kind: CreateSalted, Caller: caller, CodeHash: codeHash, Salt: salt}
}

// FixedCreateScheme returns deployment to a predetermined address.
func FixedCreateScheme(address types.Address) CreateScheme {
	return CreateScheme{Kind: CreateFixed, Address: address}
}

// Interpreter executes bytecode against a Host. The engine interprets the
// returned error as the frame's exit class: nil is Succeed,
// ErrExecutionReverted is Revert (output preserved), a FatalError is Fatal,
// anything else is Error.
type Interpreter interface {
	Run(host Host, code []byte, input []byte, ctx Context) ([]byte, error)
}
