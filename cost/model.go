// Package cost implements the cost model and cost tracker of spec §4.4: the
// per-transaction cost vector, the per-bank accumulators that gate
// admission, and the post-execution reconciliation that keeps them exact.
package cost

import "github.com/vivekjami/banking-stage/external"

// Per-signature and per-resource cost constants. These mirror the teacher's
// gas-accounting constants in mining.go (a flat per-unit multiplier checked
// against a ceiling) generalized to the five-component vector of spec §3.
const (
	SignatureCost          uint64 = 720
	SecpSignatureCost      uint64 = 1_000
	Ed25519SignatureCost   uint64 = 1_000
	WriteLockCost          uint64 = 300
	DataBytesCostPerByte   uint64 = 1
	dataBytesCostDivisor   uint64 = 4
	LoadedAccountsByteCost uint64 = 1
)

// builtinInstructionCost is the flat cost charged for every builtin
// (non-BPF) program instruction, assuming every protocol feature the cost
// model is aware of is active. Real builtins vary; this core treats them
// uniformly since signature-verification/loader internals are out of scope.
const builtinInstructionCost uint64 = 150

// StaticBuiltinCostSum is the minimum compute-unit ceiling the Packet Filter
// requires (spec §4.1): the sum of static builtin instruction costs assuming
// one signature-verification builtin and one compute-budget builtin are
// always present, as every sanitized transaction carries at least those.
const StaticBuiltinCostSum uint64 = builtinInstructionCost * 2

// VoteFixedCost is the fixed, precomputed cost vector used for every vote
// transaction (spec §4.4, "Votes use a fixed precomputed cost vector").
var VoteFixedCost = TransactionCost{
	SignatureCost:       SignatureCost,
	WriteLockCost:       WriteLockCost * 3,
	DataBytesCost:       250,
	ProgramExecutionCost: 2_100,
}

// TransactionCost is the five-component, non-negative cost vector of a
// single transaction (spec §3).
type TransactionCost struct {
	SignatureCost                 uint64
	WriteLockCost                 uint64
	DataBytesCost                 uint64
	LoadedAccountsDataSizeCost     uint64
	ProgramExecutionCost           uint64
}

// Sum returns the admission cost: the sum of all five components.
func (c TransactionCost) Sum() uint64 {
	return c.SignatureCost + c.WriteLockCost + c.DataBytesCost +
		c.LoadedAccountsDataSizeCost + c.ProgramExecutionCost
}

// Model deterministically computes a TransactionCost from a transaction and
// the cost model's (fixed) assumed feature set.
type Model struct{}

// NewModel returns a cost model. It carries no state: every feature the cost
// model consults is assumed active, per spec §4.4.
func NewModel() *Model {
	return &Model{}
}

// Calculate produces a TransactionCost for tx.
func (m *Model) Calculate(tx external.Transaction) TransactionCost {
	if tx.IsVote() {
		return VoteFixedCost
	}

	sigCost := uint64(tx.SignatureCount())*SignatureCost +
		approxPrecompileCost(tx)

	writeLockCost := uint64(len(tx.WritableAccounts())) * WriteLockCost

	dataBytesCost := tx.SerializedSize() * DataBytesCostPerByte / dataBytesCostDivisor

	loadedDataCost := tx.LoadedAccountsDataSizeLimit() * LoadedAccountsByteCost

	// program_execution_cost: one builtin's flat cost plus whatever
	// compute budget the transaction requested for its non-builtin
	// instructions.
	programCost := builtinInstructionCost + tx.ComputeUnitLimit()

	return TransactionCost{
		SignatureCost:              sigCost,
		WriteLockCost:              writeLockCost,
		DataBytesCost:              dataBytesCost,
		LoadedAccountsDataSizeCost: loadedDataCost,
		ProgramExecutionCost:       programCost,
	}
}

// approxPrecompileCost charges the Ed25519/Secp signature-precompile rate
// for every precompile instruction the transaction carries. The cost model
// does not distinguish which of the three precompiles was used (that
// distinction belongs to the Filter's cap, not the fee the signature costs).
func approxPrecompileCost(tx external.Transaction) uint64 {
	return uint64(tx.PrecompileSignatureCount()) * SecpSignatureCost
}
