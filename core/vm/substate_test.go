package vm

import (
	"testing"

	"github.com/rentevm/rentevm/core/types"
)

func TestSubstateDepthAndStatic(t *testing.T) {
	root := NewSubstateMeta(100000, 1000, 100)
	if root.Depth() != -1 {
		t.Fatalf("root depth = %d, want -1", root.Depth())
	}
	child := root.Child(1000, false)
	if child.Depth() != 0 {
		t.Errorf("first child depth = %d, want 0", child.Depth())
	}
	static := child.Child(500, true)
	if static.Depth() != 1 {
		t.Errorf("grandchild depth = %d, want 1", static.Depth())
	}
	if !static.IsStatic() {
		t.Error("static frame not marked static")
	}
	// Static-ness is inherited even when the nested call does not ask for it.
	nested := static.Child(100, false)
	if !nested.IsStatic() {
		t.Error("child of static frame must be static")
	}
}

func TestSubstateChildStorageLimit(t *testing.T) {
	root := NewSubstateMeta(100000, 1000, 100)
	if err := root.StorageMeter().Charge(600); err != nil {
		t.Fatalf("charge: %v", err)
	}
	child := root.Child(1000, false)
	if got := child.StorageMeter().Limit(); got != 400 {
		t.Errorf("child storage limit = %d, want parent's available 400", got)
	}
	if got := child.StorageMeter().ExtraBytes(); got != 100 {
		t.Errorf("child extra bytes = %d, want 100", got)
	}
}

func TestSubstateProvenanceInherited(t *testing.T) {
	root := NewSubstateMeta(100000, 1000, 0)
	caller := types.HexToAddress("0x1111111111111111111111111111111111111111")
	target := types.HexToAddress("0x2222222222222222222222222222222222222222")
	root.SetCaller(caller)
	root.SetTarget(target)

	child := root.Child(1000, false)
	if child.Caller() == nil || *child.Caller() != caller {
		t.Errorf("child caller = %v, want %v", child.Caller(), caller)
	}
	if child.Target() == nil || *child.Target() != target {
		t.Errorf("child target = %v, want %v", child.Target(), target)
	}
}

func TestSubstateProvenanceFixedAtEntry(t *testing.T) {
	origin := types.HexToAddress("0x1111111111111111111111111111111111111111")
	writer := types.HexToAddress("0x2222222222222222222222222222222222222222")
	callee := types.HexToAddress("0x3333333333333333333333333333333333333333")

	root := NewSubstateMeta(100000, 1000, 0)
	root.SetCaller(origin)
	root.SetTarget(writer)
	frame := root.Child(1000, false)

	// The frame dispatches a nested call: staging provenance for the callee
	// must not disturb the frame's own.
	frame.SetCaller(writer)
	frame.SetTarget(callee)
	if frame.Caller() == nil || *frame.Caller() != origin {
		t.Errorf("frame caller = %v, want %v fixed at entry", frame.Caller(), origin)
	}
	if frame.Target() == nil || *frame.Target() != writer {
		t.Errorf("frame target = %v, want %v fixed at entry", frame.Target(), writer)
	}

	nested := frame.Child(500, false)
	if nested.Caller() == nil || *nested.Caller() != writer {
		t.Errorf("nested caller = %v, want staged %v", nested.Caller(), writer)
	}
	if nested.Target() == nil || *nested.Target() != callee {
		t.Errorf("nested target = %v, want staged %v", nested.Target(), callee)
	}
}

func TestSwallowCommitFoldsEverything(t *testing.T) {
	parent := NewSubstateMeta(100000, 1000, 0)
	if err := parent.GasMeter().RecordCost(40000); err != nil {
		t.Fatalf("record cost: %v", err)
	}

	child := parent.Child(40000, false)
	if err := child.GasMeter().RecordCost(10000); err != nil {
		t.Fatalf("child cost: %v", err)
	}
	child.GasMeter().RecordRefund(100)
	if err := child.StorageMeter().Charge(64); err != nil {
		t.Fatalf("child storage: %v", err)
	}

	if err := parent.SwallowCommit(child); err != nil {
		t.Fatalf("swallow commit: %v", err)
	}
	if got := parent.GasMeter().Gas(); got != 90000 {
		t.Errorf("parent gas = %d, want 90000 (leftover 30000 returned)", got)
	}
	if got := parent.GasMeter().RefundedGas(); got != 100 {
		t.Errorf("parent refund = %d, want 100", got)
	}
	if got := parent.StorageMeter().TotalUsed(); got != 64 {
		t.Errorf("parent total storage = %d, want 64", got)
	}
	if got := parent.StorageMeter().UsedStorage(); got != 0 {
		t.Errorf("parent own storage delta = %d, want 0", got)
	}
}

func TestSwallowRevertReturnsOnlyGas(t *testing.T) {
	parent := NewSubstateMeta(100000, 1000, 0)
	if err := parent.GasMeter().RecordCost(40000); err != nil {
		t.Fatalf("record cost: %v", err)
	}
	before := parent.StorageMeter().TotalUsed() - parent.StorageMeter().TotalRefunded()

	child := parent.Child(40000, false)
	if err := child.GasMeter().RecordCost(15000); err != nil {
		t.Fatalf("child cost: %v", err)
	}
	if err := child.StorageMeter().Charge(128); err != nil {
		t.Fatalf("child storage: %v", err)
	}

	parent.SwallowRevert(child)
	if got := parent.GasMeter().Gas(); got != 85000 {
		t.Errorf("parent gas = %d, want 85000", got)
	}
	after := parent.StorageMeter().TotalUsed() - parent.StorageMeter().TotalRefunded()
	if before != after {
		t.Errorf("parent storage delta changed on revert: %d -> %d", before, after)
	}
}

func TestSwallowDiscardFoldsNothing(t *testing.T) {
	parent := NewSubstateMeta(100000, 1000, 0)
	if err := parent.GasMeter().RecordCost(40000); err != nil {
		t.Fatalf("record cost: %v", err)
	}

	child := parent.Child(40000, false)
	if err := child.GasMeter().RecordCost(1); err != nil {
		t.Fatalf("child cost: %v", err)
	}
	if err := child.StorageMeter().Charge(64); err != nil {
		t.Fatalf("child storage: %v", err)
	}

	parent.SwallowDiscard(child)
	if got := parent.GasMeter().Gas(); got != 60000 {
		t.Errorf("parent gas = %d, want 60000 (nothing returned)", got)
	}
	if got := parent.StorageMeter().TotalUsed(); got != 0 {
		t.Errorf("parent storage = %d, want 0", got)
	}
}
