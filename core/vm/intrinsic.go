package vm

import "github.com/rentevm/rentevm/core/types"

// Intrinsic transaction gas costs.
const (
	// TxGas is the base cost of a call transaction.
	TxGas uint64 = 21000
	// TxGasContractCreation is the base cost of a create transaction.
	TxGasContractCreation uint64 = 53000
	// TxDataZeroGas is charged per zero byte of payload.
	TxDataZeroGas uint64 = 4
	// TxDataNonZeroGas is charged per non-zero byte of payload.
	TxDataNonZeroGas uint64 = 16
	// TxAccessListAddressGas is charged per access-list address.
	TxAccessListAddressGas uint64 = 2400
	// TxAccessListStorageKeyGas is charged per access-list storage key.
	TxAccessListStorageKeyGas uint64 = 1900
	// CreateDataGas is charged per byte of deployed contract code.
	CreateDataGas uint64 = 200
)

// CallTransactionCost returns the intrinsic cost of a call transaction.
func CallTransactionCost(data []byte, accessList types.AccessList) uint64 {
	return TxGas + dataGas(data) + accessListGas(accessList)
}

// CreateTransactionCost returns the intrinsic cost of a create transaction.
func CreateTransactionCost(initCode []byte, accessList types.AccessList) uint64 {
	return TxGasContractCreation + dataGas(initCode) + accessListGas(accessList)
}

func dataGas(data []byte) uint64 {
	var cost uint64
	for _, b := range data {
		if b == 0 {
			cost += TxDataZeroGas
		} else {
			cost += TxDataNonZeroGas
		}
	}
	return cost
}

func accessListGas(accessList types.AccessList) uint64 {
	return uint64(len(accessList))*TxAccessListAddressGas +
		uint64(accessList.StorageKeys())*TxAccessListStorageKeyGas
}
