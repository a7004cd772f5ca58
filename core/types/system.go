package types

// system.go defines the reserved system contract address space. Addresses
// whose first SystemContractPrefixLength bytes are zero are reserved for
// predeployed network contracts and mirrored token contracts; CREATE and
// CREATE2 must never derive an address inside this range.

// SystemContractPrefixLength is the number of leading zero bytes that mark
// an address as a reserved system contract.
const SystemContractPrefixLength = 9

// Byte 9 (the first byte after the zero prefix) tags the kind of mirrored
// system contract.
const (
	TokenAddressTag    = 0x01
	DexShareAddressTag = 0x02
)

// PredeployTokenAddress is the canonical token predeploy contract. Mirrored
// token and DEX-share addresses remap to it before any code or storage query.
var PredeployTokenAddress = Uint64ToAddress(0x1000)

// IsSystemContract reports whether addr lies in the reserved system range.
func IsSystemContract(addr Address) bool {
	for i := 0; i < SystemContractPrefixLength; i++ {
		if addr[i] != 0 {
			return false
		}
	}
	return true
}

// IsMirroredToken reports whether addr is a mirrored token or DEX-share
// contract, i.e. a system address whose queries resolve against the canonical
// token predeploy.
func IsMirroredToken(addr Address) bool {
	if !IsSystemContract(addr) {
		return false
	}
	tag := addr[SystemContractPrefixLength]
	return tag == TokenAddressTag || tag == DexShareAddressTag
}
