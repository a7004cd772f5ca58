package crypto

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rentevm/rentevm/core/types"
)

// CreateAddress computes the contract address for a CREATE deployment:
// keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(caller types.Address, nonce uint64) types.Address {
	data, _ := rlp.EncodeToBytes([]interface{}{caller, nonce})
	return types.BytesToAddress(Keccak256(data)[12:])
}

// Create2Address computes the contract address for a CREATE2 deployment:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func Create2Address(caller types.Address, salt types.Hash, initCodeHash types.Hash) types.Address {
	data := make([]byte, 1+types.AddressLength+2*types.HashLength)
	data[0] = 0xff
	copy(data[1:], caller[:])
	copy(data[1+types.AddressLength:], salt[:])
	copy(data[1+types.AddressLength+types.HashLength:], initCodeHash[:])
	return types.BytesToAddress(Keccak256(data)[12:])
}
