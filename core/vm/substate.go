package vm

import "github.com/rentevm/rentevm/core/types"

// SubstateMeta is the accounting half of one call frame: exactly one gas
// meter, one storage meter, the static flag, the nesting depth and the
// frame's caller/target provenance. Frames own their meters outright; folding
// a child into its parent copies deltas, it never aliases.
//
// A frame's own caller/target are fixed when the frame is spawned and never
// change afterwards: nested dispatches stage provenance for the NEXT child
// in separate pending fields. Were the frame's own target mutable, a frame
// that writes storage and then calls out would have its storage bytes
// attributed to the callee on commit.
type SubstateMeta struct {
	gasMeter     *GasMeter
	storageMeter *StorageMeter
	static       bool
	depth        int // -1 at the root, children count from 0
	caller       *types.Address
	target       *types.Address

	// Staged for the next Child; consumed there, never applied to this
	// frame's own provenance.
	pendingCaller *types.Address
	pendingTarget *types.Address
}

// NewSubstateMeta returns the root frame metadata for one transaction.
func NewSubstateMeta(gasLimit uint64, storageLimit, extraBytes uint32) *SubstateMeta {
	return &SubstateMeta{
		gasMeter:     NewGasMeter(gasLimit),
		storageMeter: NewStorageMeter(storageLimit, extraBytes),
		depth:        -1,
	}
}

// Child spawns the metadata for a nested frame: a fresh gas meter with the
// forwarded budget, a storage meter limited to what remains available here,
// inherited static-ness, depth one deeper. The child's own provenance is the
// staged pending caller/target when set, the parent's own otherwise.
func (m *SubstateMeta) Child(gasLimit uint64, static bool) *SubstateMeta {
	caller, target := m.caller, m.target
	if m.pendingCaller != nil {
		caller = m.pendingCaller
	}
	if m.pendingTarget != nil {
		target = m.pendingTarget
	}
	return &SubstateMeta{
		gasMeter:     NewGasMeter(gasLimit),
		storageMeter: NewStorageMeter(m.storageMeter.Available(), m.storageMeter.ExtraBytes()),
		static:       m.static || static,
		depth:        m.depth + 1,
		caller:       caller,
		target:       target,
	}
}

// GasMeter returns the frame's gas meter.
func (m *SubstateMeta) GasMeter() *GasMeter { return m.gasMeter }

// StorageMeter returns the frame's storage meter.
func (m *SubstateMeta) StorageMeter() *StorageMeter { return m.storageMeter }

// IsStatic reports whether the frame (or any ancestor) is static.
func (m *SubstateMeta) IsStatic() bool { return m.static }

// Depth returns the nesting depth, -1 for the root frame.
func (m *SubstateMeta) Depth() int { return m.depth }

// Caller returns the frame's caller provenance, nil when unset.
func (m *SubstateMeta) Caller() *types.Address { return m.caller }

// Target returns the frame's target provenance, nil when unset.
func (m *SubstateMeta) Target() *types.Address { return m.target }

// SetCaller stages who initiates the next child frame. The frame's own
// caller is untouched; the value is consumed by the ledger when resolving
// the maintainer of a newly created contract.
func (m *SubstateMeta) SetCaller(addr types.Address) {
	a := addr
	m.pendingCaller = &a
}

// SetTarget stages the contract the next child frame runs against. The
// frame's own target is untouched; the value is consumed by deposit
// reconciliation when the child commits.
func (m *SubstateMeta) SetTarget(addr types.Address) {
	a := addr
	m.pendingTarget = &a
}

// SwallowCommit folds a committed child into this frame: leftover gas
// returns as a stipend, the refund counter carries over and the storage
// delta merges in full.
func (m *SubstateMeta) SwallowCommit(child *SubstateMeta) error {
	m.gasMeter.RecordStipend(child.gasMeter.Gas())
	m.gasMeter.RecordRefund(child.gasMeter.RefundedGas())
	return m.storageMeter.Merge(child.storageMeter)
}

// SwallowRevert folds back only the unspent gas of a reverted child. Its
// storage accounting is dropped: the revert already rolled the writes back.
func (m *SubstateMeta) SwallowRevert(child *SubstateMeta) {
	m.gasMeter.RecordStipend(child.gasMeter.Gas())
}

// SwallowDiscard folds back nothing.
func (m *SubstateMeta) SwallowDiscard(child *SubstateMeta) {}
