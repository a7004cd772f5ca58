package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasMeterRecordCost(t *testing.T) {
	m := NewGasMeter(10000)
	require.NoError(t, m.RecordCost(3000))
	require.NoError(t, m.RecordCost(4000))
	assert.Equal(t, uint64(3000), m.Gas())
	assert.Equal(t, uint64(7000), m.TotalUsedGas())

	// A failing charge leaves the meter unchanged.
	err := m.RecordCost(3001)
	require.ErrorIs(t, err, ErrOutOfGas)
	assert.Equal(t, uint64(3000), m.Gas())
	assert.Equal(t, uint64(7000), m.TotalUsedGas())

	require.NoError(t, m.RecordCost(3000))
	assert.Equal(t, uint64(0), m.Gas())
}

func TestGasMeterRefundCappedAtHalf(t *testing.T) {
	m := NewGasMeter(100000)
	require.NoError(t, m.RecordCost(10000))

	m.RecordRefund(3000)
	assert.Equal(t, uint64(7000), m.UsedGas())

	// Refund beyond half of total used is capped.
	m.RecordRefund(9000)
	assert.Equal(t, uint64(12000), m.RefundedGas())
	assert.Equal(t, uint64(5000), m.UsedGas())
	assert.Equal(t, uint64(10000), m.TotalUsedGas())
}

func TestGasMeterStipendSaturates(t *testing.T) {
	m := NewGasMeter(10000)
	require.NoError(t, m.RecordCost(1000))

	// A child can return more gas than the parent reserved when it carried
	// a call stipend; used gas must not wrap.
	m.RecordStipend(5000)
	assert.Equal(t, uint64(0), m.TotalUsedGas())
	assert.Equal(t, uint64(10000), m.Gas())
}

func TestGasMeterFail(t *testing.T) {
	m := NewGasMeter(10000)
	require.NoError(t, m.RecordCost(100))
	m.RecordRefund(50)

	m.Fail()
	assert.True(t, m.Failed())
	assert.Equal(t, uint64(0), m.Gas())
	assert.Equal(t, uint64(10000), m.TotalUsedGas())
	assert.Equal(t, uint64(10000), m.UsedGas())
	assert.Equal(t, uint64(0), m.RefundedGas())

	// Refunds and stipends are disabled after failure.
	m.RecordRefund(100)
	m.RecordStipend(100)
	assert.Equal(t, uint64(10000), m.UsedGas())
}

func TestGasMeterRecordTransaction(t *testing.T) {
	m := NewGasMeter(21000)
	require.NoError(t, m.RecordTransaction(21000))
	assert.Equal(t, uint64(0), m.Gas())

	m = NewGasMeter(20999)
	require.ErrorIs(t, m.RecordTransaction(21000), ErrOutOfGas)
	assert.Equal(t, uint64(20999), m.Gas())
}

func TestGasMeterRecordCodeDeposit(t *testing.T) {
	m := NewGasMeter(10000)
	require.NoError(t, m.RecordCodeDeposit(10))
	assert.Equal(t, uint64(2000), m.TotalUsedGas())

	require.ErrorIs(t, m.RecordCodeDeposit(41), ErrOutOfGas)
	assert.Equal(t, uint64(2000), m.TotalUsedGas())
}
