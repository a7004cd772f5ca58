package vm

// GasMeter tracks remaining, used and refunded computational gas for one
// call frame. It is pure accounting: no I/O, no sharing across frames. Gas
// arithmetic cannot overflow because the limit is bounded by the block gas
// limit, small relative to uint64.
type GasMeter struct {
	gasLimit    uint64
	usedGas     uint64
	refundedGas uint64
	failed      bool
}

// NewGasMeter returns a meter with the given gas budget.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{gasLimit: limit}
}

// Gas returns the remaining gas. A failed meter has none.
func (m *GasMeter) Gas() uint64 {
	if m.failed {
		return 0
	}
	return m.gasLimit - m.usedGas
}

// Limit returns the meter's gas budget.
func (m *GasMeter) Limit() uint64 { return m.gasLimit }

// TotalUsedGas returns gas consumed before refunds. A failed meter reports
// its entire budget.
func (m *GasMeter) TotalUsedGas() uint64 {
	if m.failed {
		return m.gasLimit
	}
	return m.usedGas
}

// RefundedGas returns the accumulated refund counter.
func (m *GasMeter) RefundedGas() uint64 {
	if m.failed {
		return 0
	}
	return m.refundedGas
}

// UsedGas is the billable gas: total used minus the refund, with the refund
// capped at half of the total (EIP-3529 predecessor rule).
func (m *GasMeter) UsedGas() uint64 {
	total := m.TotalUsedGas()
	refund := m.RefundedGas()
	if refund > total/2 {
		refund = total / 2
	}
	return total - refund
}

// Failed reports whether Fail was called.
func (m *GasMeter) Failed() bool { return m.failed }

// RecordCost charges amount against the remaining gas. On ErrOutOfGas the
// meter is left unchanged.
func (m *GasMeter) RecordCost(amount uint64) error {
	if amount > m.Gas() {
		return ErrOutOfGas
	}
	m.usedGas += amount
	return nil
}

// RecordRefund increases the refund counter. The cap at half of total used
// gas is applied by UsedGas, not here.
func (m *GasMeter) RecordRefund(amount uint64) {
	if m.failed {
		return
	}
	m.refundedGas += amount
}

// RecordStipend folds a child frame's leftover gas back into this meter
// after a committed or reverted (but not discarded) call. The stipend can
// exceed used gas when the child carried a call stipend conjured on top of
// what the parent reserved; used gas saturates at zero.
func (m *GasMeter) RecordStipend(returned uint64) {
	if m.failed {
		return
	}
	if returned > m.usedGas {
		m.usedGas = 0
		return
	}
	m.usedGas -= returned
}

// RecordTransaction charges the intrinsic transaction cost against the full
// budget. Failure means the transaction never starts.
func (m *GasMeter) RecordTransaction(cost uint64) error {
	return m.RecordCost(cost)
}

// RecordCodeDeposit charges the per-byte deposit for storing created
// contract code.
func (m *GasMeter) RecordCodeDeposit(codeLen int) error {
	return m.RecordCost(uint64(codeLen) * CreateDataGas)
}

// Fail marks the meter failed: the whole budget reads as consumed and
// refunds are disabled. Used for Exit-Fatal outcomes only.
func (m *GasMeter) Fail() {
	m.failed = true
}
