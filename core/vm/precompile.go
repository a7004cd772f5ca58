package vm

import (
	"github.com/rentevm/rentevm/core/types"
)

// PrecompileOutput is a successful precompile execution: its declared cost
// (charged to the child frame's gas meter), output bytes and any logs, which
// are replayed through the same path as interpreter logs to preserve
// ordering.
type PrecompileOutput struct {
	Cost   uint64
	Output []byte
	Logs   []types.Log
}

// PrecompileResult is the outcome of dispatching to a matched precompile.
// Err non-nil means the precompile failed; the frame reverts with an
// ABI-encoded error message.
type PrecompileResult struct {
	Output *PrecompileOutput
	Err    error
}

// PrecompileSet resolves an address to a precompiled contract. Execute
// returns nil when addr is not a precompile, in which case the interpreter
// runs instead. The set of precompiles is a deployment-time choice, hence
// the interface.
type PrecompileSet interface {
	Execute(addr types.Address, input []byte, targetGas uint64, ctx Context) *PrecompileResult
}

// revertSelector is the 4-byte selector of Error(string).
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// encodeRevertMessage ABI-encodes err as Error(string) so precompile
// failures surface to callers the same way Solidity revert strings do.
func encodeRevertMessage(err error) []byte {
	msg := []byte(err.Error())
	padded := (len(msg) + 31) / 32 * 32
	out := make([]byte, 0, 4+64+padded)
	out = append(out, revertSelector...)
	out = append(out, abiWord(32)...)
	out = append(out, abiWord(uint64(len(msg)))...)
	out = append(out, msg...)
	out = append(out, make([]byte, padded-len(msg))...)
	return out
}

func abiWord(v uint64) []byte {
	var word [32]byte
	for i := 0; i < 8; i++ {
		word[31-i] = byte(v >> (8 * i))
	}
	return word[:]
}
