// Package state provides the in-memory layered ledger the EVM engine
// executes against: accounts with content-addressed code, per-frame storage
// overlays and the storage-deposit ledger the runner reconciles.
package state

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/rentevm/rentevm/core/types"
	"github.com/rentevm/rentevm/core/vm"
	"github.com/rentevm/rentevm/crypto"
	"github.com/rentevm/rentevm/log"
)

var (
	// ErrExitRoot is returned when an exit would pop the root frame.
	ErrExitRoot = errors.New("cannot exit the root substate")
	// ErrReservedShortfall is returned when a deposit charge exceeds the
	// origin's reserved balance. The meter limit makes this unreachable
	// unless the ledger was mutated behind the engine's back.
	ErrReservedShortfall = errors.New("reserved deposit shortfall")
	// ErrEmptyCode rejects contract installation with no code.
	ErrEmptyCode = errors.New("contract code must not be empty")
)

// ContractInfo records the code hash, maintainer and publication state of a
// contract account, plus the running storage-size counter the deposit
// reconciliation maintains. Present if and only if the account has non-empty
// code.
type ContractInfo struct {
	CodeHash     types.Hash
	Maintainer   types.Address
	Published    bool
	StorageUsage uint32
}

func (c *ContractInfo) clone() *ContractInfo {
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}

// Account is a ledger account: a monotonic nonce and optional contract
// metadata. Balances live in a separate ledger keyed by address.
type Account struct {
	Nonce    uint64
	Contract *ContractInfo
}

func (a *Account) clone() *Account {
	if a == nil {
		return &Account{}
	}
	return &Account{Nonce: a.Nonce, Contract: a.Contract.clone()}
}

// Vicinity is the block and transaction context the engine can query but
// never mutate.
type Vicinity struct {
	Origin          types.Address
	GasPrice        *uint256.Int
	BlockNumber     *uint256.Int
	BlockCoinbase   types.Address
	BlockTimestamp  uint64
	BlockDifficulty *uint256.Int
	BlockGasLimit   uint64
	BlockHashes     map[uint64]types.Hash
}

// substate is one frame's state overlay. Writes land here; reads walk the
// stack top-down before falling through to committed state.
type substate struct {
	meta        *vm.SubstateMeta
	storage     map[types.Address]map[types.Hash]types.Hash
	resets      map[types.Address]bool
	accounts    map[types.Address]*Account
	balances    map[types.Address]*uint256.Int
	deleted     map[types.Address]bool
	touched     map[types.Address]bool
	logs        []types.Log
	storageLogs []vm.StorageLog
	deletes     []types.Address
}

func newSubstate(meta *vm.SubstateMeta) *substate {
	return &substate{
		meta:     meta,
		storage:  make(map[types.Address]map[types.Hash]types.Hash),
		resets:   make(map[types.Address]bool),
		accounts: make(map[types.Address]*Account),
		balances: make(map[types.Address]*uint256.Int),
		deleted:  make(map[types.Address]bool),
		touched:  make(map[types.Address]bool),
	}
}

// StackStateDB implements vm.TxState over in-memory maps. One instance
// serves exactly one transaction: the engine is the sole writer for its
// lifetime, so no locking is needed.
type StackStateDB struct {
	config         vm.Config
	vicinity       Vicinity
	depositPerByte *uint256.Int

	accounts map[types.Address]*Account
	balances map[types.Address]*uint256.Int
	reserved map[types.Address]*uint256.Int
	storage  map[types.Address]map[types.Hash]types.Hash
	codes    map[types.Hash][]byte

	stack []*substate
	log   *log.Logger
}

// New returns a transaction state whose root frame carries the given gas and
// storage budgets. depositPerByte prices one storage byte in the native
// currency.
func New(config vm.Config, vicinity Vicinity, gasLimit uint64, storageLimit uint32, depositPerByte *uint256.Int) *StackStateDB {
	if vicinity.GasPrice == nil {
		vicinity.GasPrice = new(uint256.Int)
	}
	if vicinity.BlockNumber == nil {
		vicinity.BlockNumber = new(uint256.Int)
	}
	if vicinity.BlockDifficulty == nil {
		vicinity.BlockDifficulty = new(uint256.Int)
	}
	if depositPerByte == nil {
		depositPerByte = new(uint256.Int)
	}
	root := newSubstate(vm.NewSubstateMeta(gasLimit, storageLimit, config.NewContractExtraBytes))
	return &StackStateDB{
		config:         config,
		vicinity:       vicinity,
		depositPerByte: depositPerByte,
		accounts:       make(map[types.Address]*Account),
		balances:       make(map[types.Address]*uint256.Int),
		reserved:       make(map[types.Address]*uint256.Int),
		storage:        make(map[types.Address]map[types.Hash]types.Hash),
		codes:          make(map[types.Hash][]byte),
		stack:          []*substate{root},
		log:            log.Default().Module("state"),
	}
}

func (s *StackStateDB) top() *substate { return s.stack[len(s.stack)-1] }

// account returns a read-only view of addr, or nil if absent everywhere.
func (s *StackStateDB) account(addr types.Address) *Account {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if acct, ok := s.stack[i].accounts[addr]; ok {
			return acct
		}
	}
	return s.accounts[addr]
}

// mutAccount copies addr's account into the top frame for writing.
func (s *StackStateDB) mutAccount(addr types.Address) *Account {
	frame := s.top()
	if acct, ok := frame.accounts[addr]; ok {
		return acct
	}
	acct := s.account(addr).clone()
	frame.accounts[addr] = acct
	return acct
}

// --- vm.Backend ---

func (s *StackStateDB) Origin() types.Address { return s.vicinity.Origin }

func (s *StackStateDB) GasPrice() *uint256.Int {
	return new(uint256.Int).Set(s.vicinity.GasPrice)
}

func (s *StackStateDB) BlockHash(number uint64) types.Hash {
	return s.vicinity.BlockHashes[number]
}

func (s *StackStateDB) BlockNumber() *uint256.Int {
	return new(uint256.Int).Set(s.vicinity.BlockNumber)
}

func (s *StackStateDB) BlockCoinbase() types.Address { return s.vicinity.BlockCoinbase }
func (s *StackStateDB) BlockTimestamp() uint64       { return s.vicinity.BlockTimestamp }

func (s *StackStateDB) BlockDifficulty() *uint256.Int {
	return new(uint256.Int).Set(s.vicinity.BlockDifficulty)
}

func (s *StackStateDB) BlockGasLimit() uint64 { return s.vicinity.BlockGasLimit }

// --- frame stack ---

// Meta returns the top frame's accounting metadata.
func (s *StackStateDB) Meta() *vm.SubstateMeta { return s.top().meta }

// Enter pushes a child frame.
func (s *StackStateDB) Enter(gasLimit uint64, static bool) {
	s.stack = append(s.stack, newSubstate(s.top().meta.Child(gasLimit, static)))
}

// ExitCommit pops the top frame and folds everything it holds into its
// parent: meter deltas, storage and account overlays, logs, deletions, and a
// storage log attributing the frame's own net bytes to its target contract.
func (s *StackStateDB) ExitCommit() error {
	if len(s.stack) < 2 {
		return ErrExitRoot
	}
	child := s.top()
	s.stack = s.stack[:len(s.stack)-1]
	parent := s.top()

	if err := parent.meta.SwallowCommit(child.meta); err != nil {
		return err
	}

	for addr := range child.resets {
		parent.resets[addr] = true
		parent.storage[addr] = make(map[types.Hash]types.Hash)
	}
	for addr, slots := range child.storage {
		dst := parent.storage[addr]
		if dst == nil {
			dst = make(map[types.Hash]types.Hash)
			parent.storage[addr] = dst
		}
		for key, value := range slots {
			dst[key] = value
		}
	}
	for addr, acct := range child.accounts {
		parent.accounts[addr] = acct
	}
	for addr, balance := range child.balances {
		parent.balances[addr] = balance
	}
	for addr := range child.deleted {
		parent.deleted[addr] = true
	}
	for addr := range child.touched {
		parent.touched[addr] = true
	}
	parent.logs = append(parent.logs, child.logs...)
	parent.storageLogs = append(parent.storageLogs, child.storageLogs...)
	parent.deletes = append(parent.deletes, child.deletes...)

	if target := child.meta.Target(); target != nil {
		if used := child.meta.StorageMeter().UsedStorage(); used != 0 {
			parent.storageLogs = append(parent.storageLogs, vm.StorageLog{Contract: *target, Used: used})
		}
	}
	return nil
}

// ExitRevert pops the top frame, dropping its writes; only unspent gas folds
// back.
func (s *StackStateDB) ExitRevert() error {
	if len(s.stack) < 2 {
		return ErrExitRoot
	}
	child := s.top()
	s.stack = s.stack[:len(s.stack)-1]
	s.top().meta.SwallowRevert(child.meta)
	return nil
}

// ExitDiscard pops the top frame, dropping everything.
func (s *StackStateDB) ExitDiscard() error {
	if len(s.stack) < 2 {
		return ErrExitRoot
	}
	child := s.top()
	s.stack = s.stack[:len(s.stack)-1]
	s.top().meta.SwallowDiscard(child.meta)
	return nil
}

// --- account and storage access ---

// Balance returns a copy of addr's free balance.
func (s *StackStateDB) Balance(addr types.Address) *uint256.Int {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if balance, ok := s.stack[i].balances[addr]; ok {
			return new(uint256.Int).Set(balance)
		}
	}
	if balance, ok := s.balances[addr]; ok {
		return new(uint256.Int).Set(balance)
	}
	return new(uint256.Int)
}

func (s *StackStateDB) Nonce(addr types.Address) uint64 {
	if acct := s.account(addr); acct != nil {
		return acct.Nonce
	}
	return 0
}

// Code returns addr's code. Mirrored system addresses resolve against the
// canonical token predeploy.
func (s *StackStateDB) Code(addr types.Address) []byte {
	if types.IsMirroredToken(addr) {
		addr = types.PredeployTokenAddress
	}
	acct := s.account(addr)
	if acct == nil || acct.Contract == nil {
		return nil
	}
	return s.codes[acct.Contract.CodeHash]
}

func (s *StackStateDB) Storage(addr types.Address, key types.Hash) types.Hash {
	for i := len(s.stack) - 1; i >= 0; i-- {
		frame := s.stack[i]
		if value, ok := frame.storage[addr][key]; ok {
			return value
		}
		if frame.resets[addr] {
			return types.Hash{}
		}
	}
	return s.storage[addr][key]
}

func (s *StackStateDB) Exists(addr types.Address) bool {
	if s.account(addr) != nil {
		return true
	}
	for i := len(s.stack) - 1; i >= 0; i-- {
		if _, ok := s.stack[i].balances[addr]; ok {
			return true
		}
	}
	_, ok := s.balances[addr]
	return ok
}

func (s *StackStateDB) Deleted(addr types.Address) bool {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].deleted[addr] {
			return true
		}
	}
	return false
}

// --- mutations (top frame only) ---

func (s *StackStateDB) SetStorage(addr types.Address, key, value types.Hash) {
	frame := s.top()
	slots := frame.storage[addr]
	if slots == nil {
		slots = make(map[types.Hash]types.Hash)
		frame.storage[addr] = slots
	}
	slots[key] = value
}

// ResetStorage shadows every committed slot of addr within the current
// frame.
func (s *StackStateDB) ResetStorage(addr types.Address) {
	frame := s.top()
	frame.resets[addr] = true
	frame.storage[addr] = make(map[types.Hash]types.Hash)
}

// SetCode installs code for a freshly created contract. The maintainer is
// the nearest caller provenance on the frame stack. Code bytes go to the
// content-addressed store; identical bytecode across contracts is stored
// once and never mutated in place.
func (s *StackStateDB) SetCode(addr types.Address, code []byte) error {
	if len(code) == 0 {
		return nil
	}
	var maintainer types.Address
	for i := len(s.stack) - 1; i >= 0; i-- {
		if caller := s.stack[i].meta.Caller(); caller != nil {
			maintainer = *caller
			break
		}
	}
	codeHash := crypto.Keccak256Hash(code)
	s.codes[codeHash] = code
	acct := s.mutAccount(addr)
	acct.Contract = &ContractInfo{CodeHash: codeHash, Maintainer: maintainer}
	s.log.Debug("code installed", "address", addr, "hash", codeHash, "len", len(code), "maintainer", maintainer)
	return nil
}

func (s *StackStateDB) IncNonce(addr types.Address) {
	s.mutAccount(addr).Nonce++
}

// Transfer moves value between free balances inside the current frame.
func (s *StackStateDB) Transfer(transfer vm.Transfer) error {
	if transfer.Value == nil || transfer.Value.IsZero() {
		return nil
	}
	source := s.Balance(transfer.Source)
	if source.Lt(transfer.Value) {
		return vm.ErrOutOfFund
	}
	s.top().balances[transfer.Source] = source.Sub(source, transfer.Value)
	target := s.Balance(transfer.Target)
	s.top().balances[transfer.Target] = target.Add(target, transfer.Value)
	return nil
}

func (s *StackStateDB) ResetBalance(addr types.Address) {
	s.top().balances[addr] = new(uint256.Int)
}

func (s *StackStateDB) SetDeleted(addr types.Address) {
	if s.Deleted(addr) {
		return
	}
	frame := s.top()
	frame.deleted[addr] = true
	frame.deletes = append(frame.deletes, addr)
}

func (s *StackStateDB) Log(addr types.Address, topics []types.Hash, data []byte) {
	frame := s.top()
	frame.logs = append(frame.logs, types.Log{Address: addr, Topics: topics, Data: data})
}

func (s *StackStateDB) Touch(addr types.Address) {
	s.top().touched[addr] = true
}

// --- vm.TxState: deploy gating and the deposit ledger ---

// CanCallContract allows calls to plain accounts and published contracts;
// an unpublished contract is callable only by its maintainer.
func (s *StackStateDB) CanCallContract(caller, contract types.Address) bool {
	acct := s.account(contract)
	if acct == nil || acct.Contract == nil {
		return true
	}
	return acct.Contract.Published || acct.Contract.Maintainer == caller
}

func (s *StackStateDB) depositFor(bytes uint32) *uint256.Int {
	return new(uint256.Int).Mul(s.depositPerByte, uint256.NewInt(uint64(bytes)))
}

func (s *StackStateDB) reservedOf(addr types.Address) *uint256.Int {
	if r, ok := s.reserved[addr]; ok {
		return r
	}
	r := new(uint256.Int)
	s.reserved[addr] = r
	return r
}

// ReserveStorage locks the deposit for up to limit bytes from origin's free
// balance before execution.
func (s *StackStateDB) ReserveStorage(origin types.Address, limit uint32) error {
	if limit == 0 {
		return nil
	}
	amount := s.depositFor(limit)
	balance := s.Balance(origin)
	if balance.Lt(amount) {
		return vm.ErrOutOfFund
	}
	s.top().balances[origin] = balance.Sub(balance, amount)
	s.reservedOf(origin).Add(s.reservedOf(origin), amount)
	return nil
}

// ChargeStorage settles one storage log: positive deltas move deposit from
// origin's reservation to the contract's, negative deltas move it back.
func (s *StackStateDB) ChargeStorage(origin, contract types.Address, delta int64) error {
	if delta == 0 {
		return nil
	}
	if delta > 0 {
		amount := s.depositFor(uint32(delta))
		from := s.reservedOf(origin)
		if from.Lt(amount) {
			return ErrReservedShortfall
		}
		from.Sub(from, amount)
		s.reservedOf(contract).Add(s.reservedOf(contract), amount)
		if acct := s.mutAccount(contract); acct.Contract != nil {
			acct.Contract.StorageUsage += uint32(delta)
		}
		return nil
	}
	freed := uint32(-delta)
	amount := s.depositFor(freed)
	from := s.reservedOf(contract)
	if from.Lt(amount) {
		return ErrReservedShortfall
	}
	from.Sub(from, amount)
	s.reservedOf(origin).Add(s.reservedOf(origin), amount)
	if acct := s.mutAccount(contract); acct.Contract != nil {
		if acct.Contract.StorageUsage < freed {
			acct.Contract.StorageUsage = 0
		} else {
			acct.Contract.StorageUsage -= freed
		}
	}
	return nil
}

// UnreserveStorage returns origin's remaining reservation to its free
// balance.
func (s *StackStateDB) UnreserveStorage(origin types.Address) error {
	remaining := s.reservedOf(origin)
	if remaining.IsZero() {
		return nil
	}
	balance := s.Balance(origin)
	s.top().balances[origin] = balance.Add(balance, remaining)
	s.reserved[origin] = new(uint256.Int)
	return nil
}

// RemoveContract deletes a self-destructed contract: its reserved deposit
// returns to dest, its metadata and storage are dropped.
func (s *StackStateDB) RemoveContract(contract, dest types.Address) error {
	deposit := s.reservedOf(contract)
	if !deposit.IsZero() {
		balance := s.Balance(dest)
		s.top().balances[dest] = balance.Add(balance, deposit)
		s.reserved[contract] = new(uint256.Int)
	}
	acct := s.mutAccount(contract)
	acct.Contract = nil
	s.ResetStorage(contract)
	return nil
}

// StorageLogs returns the committed frames' storage attribution, root view.
func (s *StackStateDB) StorageLogs() []vm.StorageLog { return s.top().storageLogs }

// Deletes returns addresses flagged for removal, in flag order.
func (s *StackStateDB) Deletes() []types.Address { return s.top().deletes }

// Logs returns the transaction's committed event logs.
func (s *StackStateDB) Logs() []types.Log { return s.top().logs }

// --- setup helpers for callers and tests (committed state) ---

// SetBalance writes a committed free balance.
func (s *StackStateDB) SetBalance(addr types.Address, balance *uint256.Int) {
	s.balances[addr] = new(uint256.Int).Set(balance)
}

// SetNonce writes a committed nonce.
func (s *StackStateDB) SetNonce(addr types.Address, nonce uint64) {
	acct := s.accounts[addr]
	if acct == nil {
		acct = &Account{}
		s.accounts[addr] = acct
	}
	acct.Nonce = nonce
}

// SetCommittedStorage writes a committed storage slot.
func (s *StackStateDB) SetCommittedStorage(addr types.Address, key, value types.Hash) {
	slots := s.storage[addr]
	if slots == nil {
		slots = make(map[types.Hash]types.Hash)
		s.storage[addr] = slots
	}
	slots[key] = value
}

// PutContract installs a committed contract with the given maintainer and
// publication state.
func (s *StackStateDB) PutContract(addr types.Address, code []byte, maintainer types.Address, published bool) error {
	if len(code) == 0 {
		return ErrEmptyCode
	}
	codeHash := crypto.Keccak256Hash(code)
	s.codes[codeHash] = code
	acct := s.accounts[addr]
	if acct == nil {
		acct = &Account{}
		s.accounts[addr] = acct
	}
	acct.Contract = &ContractInfo{CodeHash: codeHash, Maintainer: maintainer, Published: published}
	return nil
}

// SetReservedBalance writes a committed reserved deposit. Pre-existing
// contracts carry one proportional to their storage usage.
func (s *StackStateDB) SetReservedBalance(addr types.Address, amount *uint256.Int) {
	s.reserved[addr] = new(uint256.Int).Set(amount)
}

// ContractInfo returns a copy of addr's contract metadata, nil for plain
// accounts. Mirrored system addresses resolve to the token predeploy.
func (s *StackStateDB) ContractInfo(addr types.Address) *ContractInfo {
	if types.IsMirroredToken(addr) {
		addr = types.PredeployTokenAddress
	}
	acct := s.account(addr)
	if acct == nil {
		return nil
	}
	return acct.Contract.clone()
}

// ReservedBalance returns a copy of addr's reserved deposit.
func (s *StackStateDB) ReservedBalance(addr types.Address) *uint256.Int {
	if r, ok := s.reserved[addr]; ok {
		return new(uint256.Int).Set(r)
	}
	return new(uint256.Int)
}

var _ vm.TxState = (*StackStateDB)(nil)
