package types

import "testing"

func TestIsSystemContract(t *testing.T) {
	if !IsSystemContract(Address{}) {
		t.Error("zero address is in the system range")
	}
	if !IsSystemContract(Uint64ToAddress(0x1000)) {
		t.Error("predeploy addresses are in the system range")
	}
	var edge Address
	edge[SystemContractPrefixLength-1] = 1
	if IsSystemContract(edge) {
		t.Error("non-zero byte inside the prefix must disqualify")
	}
	if IsSystemContract(HexToAddress("0xdeadbeef00000000000000000000000000000000")) {
		t.Error("ordinary address flagged as system contract")
	}
}

func TestIsMirroredToken(t *testing.T) {
	var token Address
	token[SystemContractPrefixLength] = TokenAddressTag
	token[AddressLength-1] = 0x42
	if !IsMirroredToken(token) {
		t.Error("token tag not recognized")
	}

	var dexShare Address
	dexShare[SystemContractPrefixLength] = DexShareAddressTag
	if !IsMirroredToken(dexShare) {
		t.Error("dex share tag not recognized")
	}

	// An untagged system address, the predeploy itself included, is not
	// mirrored.
	if IsMirroredToken(PredeployTokenAddress) {
		t.Error("the predeploy must not remap onto itself")
	}

	outside := token
	outside[0] = 1
	if IsMirroredToken(outside) {
		t.Error("tagged address outside the system range must not mirror")
	}
}
