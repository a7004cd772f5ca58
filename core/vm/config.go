package vm

// Config carries every tunable the engine consults. It is threaded through
// constructors explicitly so differing network configurations can coexist in
// one process.
type Config struct {
	// ChainID reported to the interpreter through the Host.
	ChainID uint64

	// CallStipend is added to a child call's gas budget when a non-zero
	// value transfer accompanies a non-static call.
	CallStipend uint64

	// CallStackLimit bounds frame nesting depth. Entering a frame beyond
	// the limit fails with ErrCallTooDeep before any meter mutation.
	CallStackLimit int

	// CreateContractLimit is the deployed-code size ceiling (EIP-170).
	// Zero disables the check.
	CreateContractLimit uint32

	// CallL64AfterGas enables the 63/64ths gas forwarding rule (EIP-150).
	CallL64AfterGas bool

	// CreateIncreaseNonce bumps the freshly created contract's own nonce
	// (EIP-161).
	CreateIncreaseNonce bool

	// Estimate makes gas accounting pessimistic for estimation calls: the
	// 63/64 holdback is charged instead of merely withheld.
	Estimate bool

	// StorageSlotBytes is the deposit-accounting size of one occupied
	// storage slot (key plus value).
	StorageSlotBytes uint32

	// NewContractExtraBytes is the fixed storage overhead charged for a
	// newly created contract on top of its code length.
	NewContractExtraBytes uint32
}

// IstanbulConfig returns the engine configuration used on Istanbul-flavored
// networks.
func IstanbulConfig() Config {
	return Config{
		ChainID:               1,
		CallStipend:           2300,
		CallStackLimit:        1024,
		CreateContractLimit:   24576,
		CallL64AfterGas:       true,
		CreateIncreaseNonce:   true,
		StorageSlotBytes:      64,
		NewContractExtraBytes: 100,
	}
}
