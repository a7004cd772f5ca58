package vm

// StorageMeter tracks the net storage-byte delta of one call frame and
// enforces the frame's storage limit independently of gas. Unlike gas, the
// limit is externally configured and can approach the 32-bit range, so all
// arithmetic is checked: overflow is ErrOutOfStorage, never a wrap.
//
// Child frames account separately from the frame's own writes. Merge folds a
// committed child's totals into childUsed/childRefunded exactly once, so
// UsedStorage stays the frame's own net delta and is safe to attribute to
// the frame's target contract without double counting grandchildren.
type StorageMeter struct {
	limit         uint32
	extraBytes    uint32
	used          uint32
	refunded      uint32
	childUsed     uint32
	childRefunded uint32
}

// NewStorageMeter returns a meter with the given byte limit and the fixed
// per-new-contract overhead used by ChargeWithExtraBytes.
func NewStorageMeter(limit, extraBytes uint32) *StorageMeter {
	return &StorageMeter{limit: limit, extraBytes: extraBytes}
}

// Limit returns the meter's byte budget.
func (m *StorageMeter) Limit() uint32 { return m.limit }

// ExtraBytes returns the fixed new-contract overhead.
func (m *StorageMeter) ExtraBytes() uint32 { return m.extraBytes }

// Available returns the bytes still chargeable: limit plus refunds minus
// charges, saturating at zero.
func (m *StorageMeter) Available() uint32 {
	credit, ok := addU32(m.limit, m.refunded)
	if !ok {
		return 0
	}
	credit, ok = addU32(credit, m.childRefunded)
	if !ok {
		return 0
	}
	debit, ok := addU32(m.used, m.childUsed)
	if !ok || debit > credit {
		return 0
	}
	return credit - debit
}

// Charge records bytes of new storage. Fails with ErrOutOfStorage when the
// cumulative net charge would exceed the limit; the meter is unchanged on
// failure.
func (m *StorageMeter) Charge(bytes uint32) error {
	if bytes > m.Available() {
		return ErrOutOfStorage
	}
	used, ok := addU32(m.used, bytes)
	if !ok {
		return ErrOutOfStorage
	}
	m.used = used
	return nil
}

// ChargeWithExtraBytes charges bytes plus the fixed new-contract overhead.
func (m *StorageMeter) ChargeWithExtraBytes(bytes uint32) error {
	total, ok := addU32(bytes, m.extraBytes)
	if !ok {
		return ErrOutOfStorage
	}
	return m.Charge(total)
}

// Uncharge rolls back a previous charge, saturating at zero.
func (m *StorageMeter) Uncharge(bytes uint32) {
	if bytes > m.used {
		m.used = 0
		return
	}
	m.used -= bytes
}

// Refund records bytes of freed storage.
func (m *StorageMeter) Refund(bytes uint32) error {
	refunded, ok := addU32(m.refunded, bytes)
	if !ok {
		return ErrOutOfStorage
	}
	m.refunded = refunded
	return nil
}

// Merge folds a committed child frame's totals into this meter. This is the
// only path storage accounting crosses a frame boundary and must run exactly
// once per child, on the commit path only.
func (m *StorageMeter) Merge(child *StorageMeter) error {
	used, ok := addU32(m.childUsed, child.TotalUsed())
	if !ok {
		return ErrOutOfStorage
	}
	refunded, ok := addU32(m.childRefunded, child.TotalRefunded())
	if !ok {
		return ErrOutOfStorage
	}
	m.childUsed = used
	m.childRefunded = refunded
	return nil
}

// TotalUsed returns charges including committed children.
func (m *StorageMeter) TotalUsed() uint32 { return m.used + m.childUsed }

// TotalRefunded returns refunds including committed children.
func (m *StorageMeter) TotalRefunded() uint32 { return m.refunded + m.childRefunded }

// UsedStorage returns the frame's own signed net delta, excluding children.
// Negative when the frame freed more than it allocated.
func (m *StorageMeter) UsedStorage() int64 {
	return int64(m.used) - int64(m.refunded)
}

// Finish reconciles the meter at the end of a transaction: it returns the
// total signed net delta including committed children, or ErrOutOfStorage if
// the total charge exceeded the limit.
func (m *StorageMeter) Finish() (int64, error) {
	credit, ok := addU32(m.limit, m.TotalRefunded())
	if !ok {
		return 0, ErrOutOfStorage
	}
	if m.TotalUsed() > credit {
		return 0, ErrOutOfStorage
	}
	return int64(m.TotalUsed()) - int64(m.TotalRefunded()), nil
}

func addU32(a, b uint32) (uint32, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
