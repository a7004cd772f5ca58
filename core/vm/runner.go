package vm

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/rentevm/rentevm/core/types"
	"github.com/rentevm/rentevm/log"
)

// Runner is the transaction-entry layer: it gates calls to unpublished
// contracts, reserves the storage deposit up front, runs the executor and
// reconciles the deposit ledger against the storage meter afterwards.
type Runner struct {
	config      Config
	precompiles PrecompileSet
	interp      Interpreter
	log         *log.Logger
}

// NewRunner returns a runner for the given configuration.
func NewRunner(config Config, precompiles PrecompileSet, interp Interpreter) *Runner {
	return &Runner{
		config:      config,
		precompiles: precompiles,
		interp:      interp,
		log:         log.Default().Module("runner"),
	}
}

// CallInfo is the settled outcome of one call transaction.
type CallInfo struct {
	ExitReason  ExitReason
	Output      []byte
	UsedGas     uint64
	UsedStorage int64
	Logs        []types.Log
}

// CreateInfo is the settled outcome of one create transaction.
type CreateInfo struct {
	ExitReason  ExitReason
	Address     types.Address
	Output      []byte
	UsedGas     uint64
	UsedStorage int64
	Logs        []types.Log
}

// Call runs a call transaction to settlement. The state must be freshly
// constructed with root meters matching gasLimit and storageLimit.
func (r *Runner) Call(state TxState, source, target types.Address, value *uint256.Int, input []byte, gasLimit uint64, storageLimit uint32, accessList types.AccessList) (*CallInfo, error) {
	if !state.CanCallContract(source, target) {
		return nil, ErrNoPermission
	}
	if !r.config.Estimate {
		if err := state.ReserveStorage(source, storageLimit); err != nil {
			return nil, err
		}
	}

	executor := NewStackExecutor(r.config, state, r.precompiles, r.interp)
	reason, output := executor.TransactCall(source, target, value, input, gasLimit, accessList)

	usedStorage, err := r.settle(state, source, reason)
	if err != nil {
		return nil, err
	}
	info := &CallInfo{
		ExitReason:  reason,
		Output:      output,
		UsedGas:     executor.UsedGas(),
		UsedStorage: usedStorage,
		Logs:        state.Logs(),
	}
	r.log.Debug("call settled", "target", target, "reason", reason.String(),
		"used_gas", info.UsedGas, "used_storage", usedStorage)
	return info, nil
}

// Create runs a create transaction with nonce-based derivation.
func (r *Runner) Create(state TxState, source types.Address, value *uint256.Int, initCode []byte, gasLimit uint64, storageLimit uint32, accessList types.AccessList) (*CreateInfo, error) {
	return r.create(state, source, initCode, gasLimit, storageLimit, func(e *StackExecutor) (ExitReason, types.Address, []byte) {
		return e.TransactCreate(source, value, initCode, gasLimit, accessList)
	})
}

// Create2 runs a create transaction with salted derivation.
func (r *Runner) Create2(state TxState, source types.Address, value *uint256.Int, initCode []byte, salt types.Hash, gasLimit uint64, storageLimit uint32, accessList types.AccessList) (*CreateInfo, error) {
	return r.create(state, source, initCode, gasLimit, storageLimit, func(e *StackExecutor) (ExitReason, types.Address, []byte) {
		return e.TransactCreate2(source, value, initCode, salt, gasLimit, accessList)
	})
}

// CreateAtAddress deploys to a predetermined address. Privileged path for
// installing network contracts.
func (r *Runner) CreateAtAddress(state TxState, source, target types.Address, value *uint256.Int, initCode []byte, gasLimit uint64, storageLimit uint32, accessList types.AccessList) (*CreateInfo, error) {
	return r.create(state, source, initCode, gasLimit, storageLimit, func(e *StackExecutor) (ExitReason, types.Address, []byte) {
		return e.TransactCreateAtAddress(source, target, value, initCode, gasLimit, accessList)
	})
}

func (r *Runner) create(state TxState, source types.Address, initCode []byte, gasLimit uint64, storageLimit uint32, transact func(*StackExecutor) (ExitReason, types.Address, []byte)) (*CreateInfo, error) {
	if !r.config.Estimate {
		if err := state.ReserveStorage(source, storageLimit); err != nil {
			return nil, err
		}
	}

	executor := NewStackExecutor(r.config, state, r.precompiles, r.interp)
	reason, address, output := transact(executor)

	usedStorage, err := r.settle(state, source, reason)
	if err != nil {
		return nil, err
	}
	info := &CreateInfo{
		ExitReason:  reason,
		Address:     address,
		Output:      output,
		UsedGas:     executor.UsedGas(),
		UsedStorage: usedStorage,
		Logs:        state.Logs(),
	}
	r.log.Debug("create settled", "address", address, "reason", reason.String(),
		"used_gas", info.UsedGas, "used_storage", usedStorage)
	return info, nil
}

// settle reconciles the deposit ledger after execution. On success every
// committed frame's storage log is charged or refunded against the origin's
// reserved deposit, the total is cross-checked against the root meter, and
// self-destructed contracts are removed. The remaining reservation is
// released either way.
func (r *Runner) settle(state TxState, origin types.Address, reason ExitReason) (int64, error) {
	if reason.IsFatal() {
		state.Meta().GasMeter().Fail()
	}

	var usedStorage int64
	if reason.IsSucceed() {
		total, err := state.Meta().StorageMeter().Finish()
		if err != nil {
			return 0, err
		}
		var sum int64
		for _, entry := range state.StorageLogs() {
			sum += entry.Used
			if err := state.ChargeStorage(origin, entry.Contract, entry.Used); err != nil {
				return 0, err
			}
		}
		if sum != total {
			return 0, Fatal(errors.New("storage meter disagrees with storage logs"))
		}
		usedStorage = total
		for _, contract := range state.Deletes() {
			if err := state.RemoveContract(contract, origin); err != nil {
				return 0, err
			}
		}
	}

	if !r.config.Estimate {
		if err := state.UnreserveStorage(origin); err != nil {
			return 0, err
		}
	}
	return usedStorage, nil
}
