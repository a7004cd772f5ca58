package vm

import (
	"github.com/holiman/uint256"

	"github.com/rentevm/rentevm/core/types"
	"github.com/rentevm/rentevm/crypto"
	"github.com/rentevm/rentevm/log"
)

// StackExecutor orchestrates CALL and CREATE over a layered StackState. It
// owns gas forwarding (63/64ths rule, stipends), depth enforcement,
// precompile dispatch and the commit/revert/discard folding of child frames.
// It is also the Host handed to the interpreter, so reentrant opcodes
// recurse straight back in. Single-threaded by construction: one executor
// per transaction, never shared.
type StackExecutor struct {
	config      Config
	state       StackState
	precompiles PrecompileSet
	interp      Interpreter
	log         *log.Logger
}

// NewStackExecutor returns an executor over a fresh transaction state. The
// state's root meters must carry the transaction's gas and storage limits.
func NewStackExecutor(config Config, state StackState, precompiles PrecompileSet, interp Interpreter) *StackExecutor {
	return &StackExecutor{
		config:      config,
		state:       state,
		precompiles: precompiles,
		interp:      interp,
		log:         log.Default().Module("evm"),
	}
}

// l64 is the EIP-150 retained fraction: the caller keeps 1/64th.
func l64(gas uint64) uint64 { return gas - gas/64 }

func mirroredAddress(addr types.Address) types.Address {
	if types.IsMirroredToken(addr) {
		return types.PredeployTokenAddress
	}
	return addr
}

// TransactCall executes a top-level message call. The intrinsic cost is
// charged against the fresh root meter before any recursion; failure there
// means no state was touched.
func (e *StackExecutor) TransactCall(caller, address types.Address, value *uint256.Int, data []byte, gasLimit uint64, accessList types.AccessList) (ExitReason, []byte) {
	cost := CallTransactionCost(data, accessList)
	if err := e.state.Meta().GasMeter().RecordTransaction(cost); err != nil {
		return ExitErrored(ErrOutOfGas), nil
	}
	e.state.IncNonce(caller)
	if value == nil {
		value = new(uint256.Int)
	}
	ctx := Context{Caller: caller, Address: address, ApparentValue: value}
	transfer := Transfer{Source: caller, Target: address, Value: value}
	return e.callInner(address, &transfer, data, &gasLimit, false, false, false, ctx)
}

// TransactCreate executes a top-level contract creation with nonce-based
// address derivation.
func (e *StackExecutor) TransactCreate(caller types.Address, value *uint256.Int, initCode []byte, gasLimit uint64, accessList types.AccessList) (ExitReason, types.Address, []byte) {
	cost := CreateTransactionCost(initCode, accessList)
	if err := e.state.Meta().GasMeter().RecordTransaction(cost); err != nil {
		return ExitErrored(ErrOutOfGas), types.Address{}, nil
	}
	return e.createInner(caller, LegacyCreateScheme(caller), value, initCode, &gasLimit, false)
}

// TransactCreate2 executes a top-level salted contract creation.
func (e *StackExecutor) TransactCreate2(caller types.Address, value *uint256.Int, initCode []byte, salt types.Hash, gasLimit uint64, accessList types.AccessList) (ExitReason, types.Address, []byte) {
	cost := CreateTransactionCost(initCode, accessList)
	if err := e.state.Meta().GasMeter().RecordTransaction(cost); err != nil {
		return ExitErrored(ErrOutOfGas), types.Address{}, nil
	}
	scheme := SaltedCreateScheme(caller, crypto.Keccak256Hash(initCode), salt)
	return e.createInner(caller, scheme, value, initCode, &gasLimit, false)
}

// TransactCreateAtAddress deploys to a caller-chosen address, bypassing
// derivation. Reserved for privileged network-contract deployment.
func (e *StackExecutor) TransactCreateAtAddress(caller, address types.Address, value *uint256.Int, initCode []byte, gasLimit uint64, accessList types.AccessList) (ExitReason, types.Address, []byte) {
	cost := CreateTransactionCost(initCode, accessList)
	if err := e.state.Meta().GasMeter().RecordTransaction(cost); err != nil {
		return ExitErrored(ErrOutOfGas), types.Address{}, nil
	}
	return e.createInner(caller, FixedCreateScheme(address), value, initCode, &gasLimit, false)
}

// UsedGas returns the billable gas of the transaction so far.
func (e *StackExecutor) UsedGas() uint64 {
	return e.state.Meta().GasMeter().UsedGas()
}

// Fee converts used gas to the native currency at the given price. The
// conversion is a plain multiply so it stays monotonic and deterministic.
func (e *StackExecutor) Fee(price *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(price, uint256.NewInt(e.UsedGas()))
}

// CreateAddress derives the target address for a creation scheme. Legacy and
// salted derivations that land in the reserved system range fail with
// ErrConflictContractAddress before any state mutation; fixed-address
// deployment is exempt so predeploys can be installed.
func (e *StackExecutor) CreateAddress(scheme CreateScheme) (types.Address, error) {
	var addr types.Address
	switch scheme.Kind {
	case CreateLegacy:
		addr = crypto.CreateAddress(scheme.Caller, e.state.Nonce(scheme.Caller))
	case CreateSalted:
		addr = crypto.Create2Address(scheme.Caller, scheme.Salt, scheme.CodeHash)
	case CreateFixed:
		return scheme.Address, nil
	}
	if types.IsSystemContract(addr) {
		return types.Address{}, ErrConflictContractAddress
	}
	return addr, nil
}

// callInner drives one call frame. takeL64 applies the 63/64 holdback,
// takeStipend adds the call stipend for value-bearing calls; both are false
// for transaction entry and true for the CALL opcode family.
func (e *StackExecutor) callInner(codeAddress types.Address, transfer *Transfer, input []byte, targetGas *uint64, isStatic, takeL64, takeStipend bool, ctx Context) (ExitReason, []byte) {
	meta := e.state.Meta()
	if meta.Depth()+1 > e.config.CallStackLimit {
		return ExitErrored(ErrCallTooDeep), nil
	}

	gasm := meta.GasMeter()
	afterGas := gasm.Gas()
	if takeL64 && e.config.CallL64AfterGas {
		if e.config.Estimate {
			// Estimation bills the holdback so the estimate covers the
			// worst case.
			diff := afterGas - l64(afterGas)
			if err := gasm.RecordCost(diff); err != nil {
				return ExitErrored(err), nil
			}
			afterGas = gasm.Gas()
		} else {
			afterGas = l64(afterGas)
		}
	}
	gasLimit := afterGas
	if targetGas != nil && *targetGas < gasLimit {
		gasLimit = *targetGas
	}
	// The parent pays for the forwarded gas before the child runs, so a
	// reentrant failure can never observe gas the parent did not reserve.
	if err := gasm.RecordCost(gasLimit); err != nil {
		return ExitErrored(err), nil
	}
	if transfer != nil && takeStipend && !isStatic && transfer.Value != nil && !transfer.Value.IsZero() {
		gasLimit += e.config.CallStipend
	}

	meta.SetCaller(ctx.Caller)
	meta.SetTarget(codeAddress)
	e.state.Enter(gasLimit, isStatic)
	e.state.Touch(codeAddress)
	e.log.Debug("call", "target", codeAddress, "gas", gasLimit, "static", isStatic, "depth", e.state.Meta().Depth())

	if transfer != nil {
		if err := e.state.Transfer(*transfer); err != nil {
			_ = e.state.ExitRevert()
			return ExitErrored(ErrOutOfFund), nil
		}
	}

	if e.precompiles != nil {
		if pr := e.precompiles.Execute(codeAddress, input, gasLimit, ctx); pr != nil {
			return e.finishPrecompile(pr)
		}
	}

	code := e.Code(codeAddress)
	output, rerr := e.interp.Run(e, code, input, ctx)
	reason := exitReason(rerr)
	switch reason.Kind {
	case ExitSucceed:
		if err := e.state.ExitCommit(); err != nil {
			return ExitFataled(Fatal(err)), nil
		}
		return reason, output
	case ExitRevert:
		_ = e.state.ExitRevert()
		return reason, output
	case ExitError:
		_ = e.state.ExitDiscard()
		return reason, nil
	default:
		e.state.Meta().GasMeter().Fail()
		_ = e.state.ExitDiscard()
		return reason, nil
	}
}

func (e *StackExecutor) finishPrecompile(pr *PrecompileResult) (ExitReason, []byte) {
	if pr.Err != nil {
		_ = e.state.ExitRevert()
		return ExitReverted(), encodeRevertMessage(pr.Err)
	}
	out := pr.Output
	if err := e.state.Meta().GasMeter().RecordCost(out.Cost); err != nil {
		_ = e.state.ExitDiscard()
		return ExitErrored(err), nil
	}
	for _, entry := range out.Logs {
		e.state.Log(entry.Address, entry.Topics, entry.Data)
	}
	if err := e.state.ExitCommit(); err != nil {
		return ExitFataled(Fatal(err)), nil
	}
	return ExitSucceeded(), out.Output
}

// createInner drives one create frame. The caller's nonce increments in the
// parent frame, so it survives even when the creation itself fails.
func (e *StackExecutor) createInner(caller types.Address, scheme CreateScheme, value *uint256.Int, initCode []byte, targetGas *uint64, takeL64 bool) (ExitReason, types.Address, []byte) {
	var none types.Address
	meta := e.state.Meta()
	if meta.Depth()+1 > e.config.CallStackLimit {
		return ExitErrored(ErrCallTooDeep), none, nil
	}

	address, err := e.CreateAddress(scheme)
	if err != nil {
		return ExitErrored(err), none, nil
	}
	if value != nil && e.state.Balance(caller).Lt(value) {
		return ExitErrored(ErrOutOfFund), none, nil
	}

	gasm := meta.GasMeter()
	afterGas := gasm.Gas()
	if takeL64 && e.config.CallL64AfterGas {
		if e.config.Estimate {
			diff := afterGas - l64(afterGas)
			if err := gasm.RecordCost(diff); err != nil {
				return ExitErrored(err), none, nil
			}
			afterGas = gasm.Gas()
		} else {
			afterGas = l64(afterGas)
		}
	}
	gasLimit := afterGas
	if targetGas != nil && *targetGas < gasLimit {
		gasLimit = *targetGas
	}
	if err := gasm.RecordCost(gasLimit); err != nil {
		return ExitErrored(err), none, nil
	}

	e.state.IncNonce(caller)
	meta.SetCaller(caller)
	meta.SetTarget(address)
	e.state.Enter(gasLimit, false)
	e.log.Debug("create", "address", address, "gas", gasLimit, "depth", e.state.Meta().Depth())

	// Address reuse is rejected before any transfer.
	if len(e.state.Code(address)) != 0 || e.state.Nonce(address) != 0 {
		_ = e.state.ExitDiscard()
		return ExitErrored(ErrCreateCollision), none, nil
	}
	e.state.ResetStorage(address)

	if value != nil && !value.IsZero() {
		transfer := Transfer{Source: caller, Target: address, Value: value}
		if err := e.state.Transfer(transfer); err != nil {
			_ = e.state.ExitRevert()
			return ExitErrored(ErrOutOfFund), none, nil
		}
	}
	if e.config.CreateIncreaseNonce {
		e.state.IncNonce(address)
	}

	ctx := Context{Caller: caller, Address: address, ApparentValue: value}
	output, rerr := e.interp.Run(e, initCode, nil, ctx)
	reason := exitReason(rerr)
	switch reason.Kind {
	case ExitSucceed:
		code := output
		if e.config.CreateContractLimit > 0 && uint64(len(code)) > uint64(e.config.CreateContractLimit) {
			e.state.Meta().GasMeter().Fail()
			_ = e.state.ExitDiscard()
			return ExitErrored(ErrCreateContractLimit), none, nil
		}
		if err := e.state.Meta().GasMeter().RecordCodeDeposit(len(code)); err != nil {
			_ = e.state.ExitDiscard()
			return ExitErrored(err), none, nil
		}
		// The new contract's code deposit charges the child meter so the
		// bytes are attributed to the created address on commit.
		if err := e.state.Meta().StorageMeter().ChargeWithExtraBytes(uint32(len(code))); err != nil {
			_ = e.state.ExitDiscard()
			return ExitErrored(err), none, nil
		}
		if err := e.state.SetCode(address, code); err != nil {
			e.state.Meta().GasMeter().Fail()
			_ = e.state.ExitDiscard()
			return ExitFataled(Fatal(err)), none, nil
		}
		if err := e.state.ExitCommit(); err != nil {
			return ExitFataled(Fatal(err)), none, nil
		}
		return ExitSucceeded(), address, nil
	case ExitRevert:
		_ = e.state.ExitRevert()
		return reason, none, output
	case ExitError:
		_ = e.state.ExitDiscard()
		return reason, none, nil
	default:
		e.state.Meta().GasMeter().Fail()
		_ = e.state.ExitDiscard()
		return reason, none, nil
	}
}

// --- Host implementation ---

func (e *StackExecutor) Balance(addr types.Address) *uint256.Int {
	return e.state.Balance(addr)
}

func (e *StackExecutor) Code(addr types.Address) []byte {
	return e.state.Code(mirroredAddress(addr))
}

func (e *StackExecutor) CodeHash(addr types.Address) types.Hash {
	canonical := mirroredAddress(addr)
	code := e.state.Code(canonical)
	if len(code) == 0 && !e.state.Exists(canonical) {
		return types.Hash{}
	}
	return crypto.Keccak256Hash(code)
}

func (e *StackExecutor) CodeSize(addr types.Address) int {
	return len(e.Code(addr))
}

func (e *StackExecutor) Storage(addr types.Address, key types.Hash) types.Hash {
	return e.state.Storage(addr, key)
}

// OriginalStorage reports the zero hash unconditionally: there is no
// pre-transaction snapshot here, so SSTORE reset refunds are under-counted.
func (e *StackExecutor) OriginalStorage(addr types.Address, key types.Hash) types.Hash {
	return types.Hash{}
}

func (e *StackExecutor) Exists(addr types.Address) bool {
	return e.state.Exists(addr)
}

// Deleted reports true for every account so the gas-cost calculator never
// grants a suicide refund.
func (e *StackExecutor) Deleted(addr types.Address) bool {
	return true
}

func (e *StackExecutor) GasLeft() uint64 {
	return e.state.Meta().GasMeter().Gas()
}

func (e *StackExecutor) GasPrice() *uint256.Int      { return e.state.GasPrice() }
func (e *StackExecutor) Origin() types.Address       { return e.state.Origin() }
func (e *StackExecutor) BlockHash(n uint64) types.Hash { return e.state.BlockHash(n) }
func (e *StackExecutor) BlockNumber() *uint256.Int   { return e.state.BlockNumber() }
func (e *StackExecutor) BlockCoinbase() types.Address { return e.state.BlockCoinbase() }
func (e *StackExecutor) BlockTimestamp() uint64      { return e.state.BlockTimestamp() }
func (e *StackExecutor) BlockDifficulty() *uint256.Int { return e.state.BlockDifficulty() }
func (e *StackExecutor) BlockGasLimit() uint64       { return e.state.BlockGasLimit() }
func (e *StackExecutor) ChainID() uint64             { return e.config.ChainID }

// RecordCost charges opcode gas against the current frame's meter.
func (e *StackExecutor) RecordCost(amount uint64) error {
	return e.state.Meta().GasMeter().RecordCost(amount)
}

// RecordRefund credits the current frame's refund counter.
func (e *StackExecutor) RecordRefund(amount uint64) {
	e.state.Meta().GasMeter().RecordRefund(amount)
}

// SetStorage charges or refunds the frame's storage meter for the slot
// delta, then applies the write. In a static frame it fails with ErrOutOfGas
// rather than ErrWriteProtection; kept for compatibility with existing fee
// behavior.
func (e *StackExecutor) SetStorage(addr types.Address, key, value types.Hash) error {
	meta := e.state.Meta()
	if meta.IsStatic() {
		return ErrOutOfGas
	}
	current := e.state.Storage(addr, key)
	switch {
	case current.IsZero() && !value.IsZero():
		if err := meta.StorageMeter().Charge(e.config.StorageSlotBytes); err != nil {
			return err
		}
	case !current.IsZero() && value.IsZero():
		if err := meta.StorageMeter().Refund(e.config.StorageSlotBytes); err != nil {
			return err
		}
	}
	e.state.SetStorage(addr, key, value)
	return nil
}

// Log is always permitted, static frames included.
func (e *StackExecutor) Log(addr types.Address, topics []types.Hash, data []byte) error {
	e.state.Log(addr, topics, data)
	return nil
}

// MarkDelete moves the account's whole balance to the beneficiary and flags
// the account for removal at transaction settlement.
func (e *StackExecutor) MarkDelete(addr, beneficiary types.Address) error {
	balance := e.state.Balance(addr)
	if !balance.IsZero() {
		transfer := Transfer{Source: addr, Target: beneficiary, Value: balance}
		if err := e.state.Transfer(transfer); err != nil {
			return err
		}
	}
	e.state.ResetBalance(addr)
	e.state.SetDeleted(addr)
	return nil
}

// Call implements the CALL opcode family entry.
func (e *StackExecutor) Call(target types.Address, transfer *Transfer, input []byte, targetGas *uint64, static bool, ctx Context) (ExitReason, []byte) {
	return e.callInner(target, transfer, input, targetGas, static, true, true, ctx)
}

// Create implements the CREATE/CREATE2 opcode entry.
func (e *StackExecutor) Create(caller types.Address, scheme CreateScheme, value *uint256.Int, initCode []byte, targetGas *uint64) (ExitReason, types.Address, []byte) {
	return e.createInner(caller, scheme, value, initCode, targetGas, true)
}

var _ Host = (*StackExecutor)(nil)
