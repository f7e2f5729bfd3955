package blockbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// ChainConfig translates cfg.Spec into a *params.ChainConfig: every fork at
// or before cfg.Spec is activated at block/time zero, every later fork is
// left nil (not yet scheduled). The executor needs a concrete ChainConfig to
// build vm.EVM and call core.ApplyMessage/core.NewEVMBlockContext, since
// go-ethereum derives opcode availability and gas schedules from it; this
// bridges the package's own hardfork-ordered Spec enum into that shape the
// same way the teacher's test chain configs (params.AllEthashProtocolChanges)
// activate every fork from genesis, except gated by cfg.Spec instead of
// "all of them".
func (c Config) ChainConfig() *params.ChainConfig {
	zero := big.NewInt(0)
	pc := &params.ChainConfig{
		ChainID:        new(big.Int).SetUint64(c.ChainID),
		HomesteadBlock: zero,
		EIP150Block:    zero,
		EIP155Block:    zero,
		EIP158Block:    zero,
	}
	if c.Spec.AtLeast(Byzantium) {
		pc.ByzantiumBlock = zero
	}
	if c.Spec.AtLeast(Constantinople) {
		pc.ConstantinopleBlock = zero
	}
	if c.Spec.AtLeast(Petersburg) {
		pc.PetersburgBlock = zero
	}
	if c.Spec.AtLeast(Istanbul) {
		pc.IstanbulBlock = zero
	}
	if c.Spec.AtLeast(MuirGlacier) {
		pc.MuirGlacierBlock = zero
	}
	if c.Spec.AtLeast(Berlin) {
		pc.BerlinBlock = zero
	}
	if c.Spec.AtLeast(London) {
		pc.LondonBlock = zero
	}
	if c.Spec.AtLeast(ArrowGlacier) {
		pc.ArrowGlacierBlock = zero
	}
	if c.Spec.AtLeast(GrayGlacier) {
		pc.GrayGlacierBlock = zero
	}
	if c.Spec.AtLeast(Merge) {
		pc.MergeNetsplitBlock = zero
		pc.TerminalTotalDifficulty = zero
	}
	if c.Spec.AtLeast(Shanghai) {
		t := uint64(0)
		pc.ShanghaiTime = &t
	}
	if c.Spec.AtLeast(Cancun) {
		t := uint64(0)
		pc.CancunTime = &t
	}
	if c.Spec.AtLeast(Prague) {
		t := uint64(0)
		pc.PragueTime = &t
	}
	if c.DAOForkBlock != nil {
		pc.DAOForkBlock = new(big.Int).SetUint64(*c.DAOForkBlock)
		pc.DAOForkSupport = true
	}
	return pc
}
