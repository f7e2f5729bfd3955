// Package blockbuilder assembles a single Ethereum-compatible block from a
// parent header, a hardfork configuration, and a stream of signed
// transactions. It owns the construction/admission/finalization state
// machine; EVM execution is delegated to go-ethereum's core/vm (see
// runTransaction in executor.go) and it does not persist anything (see
// State, Blockchain).
package blockbuilder

// Spec identifies an Ethereum protocol version. Feature gates throughout this
// package are monotone in Spec order, mirroring revm::primitives::SpecId.
type Spec int

const (
	// DAOFork sits below Byzantium purely for ordering: the DAO extradata
	// window check in New needs a spec value to compare activation against
	// that is older than the oldest spec this package otherwise supports.
	DAOFork Spec = iota
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	MuirGlacier
	Berlin
	London
	ArrowGlacier
	GrayGlacier
	Merge
	Shanghai
	Cancun
	Prague
)

func (s Spec) String() string {
	switch s {
	case DAOFork:
		return "DAOFork"
	case Byzantium:
		return "Byzantium"
	case Constantinople:
		return "Constantinople"
	case Petersburg:
		return "Petersburg"
	case Istanbul:
		return "Istanbul"
	case MuirGlacier:
		return "MuirGlacier"
	case Berlin:
		return "Berlin"
	case London:
		return "London"
	case ArrowGlacier:
		return "ArrowGlacier"
	case GrayGlacier:
		return "GrayGlacier"
	case Merge:
		return "Merge"
	case Shanghai:
		return "Shanghai"
	case Cancun:
		return "Cancun"
	case Prague:
		return "Prague"
	default:
		return "unknown"
	}
}

// AtLeast reports whether s is at or after other in hardfork order.
func (s Spec) AtLeast(other Spec) bool { return s >= other }

func (s Spec) IsLondon() bool    { return s.AtLeast(London) }
func (s Spec) IsMerge() bool     { return s.AtLeast(Merge) }
func (s Spec) IsShanghai() bool  { return s.AtLeast(Shanghai) }
func (s Spec) IsCancun() bool    { return s.AtLeast(Cancun) }
func (s Spec) IsPrague() bool    { return s.AtLeast(Prague) }
func (s Spec) IsByzantium() bool { return s.AtLeast(Byzantium) }

// Config bundles the active Spec with the bits of chain identity the builder
// needs but that spec.md leaves to the embedding application: the chain id
// used when recovering a transaction's sender, and the DAO-hardfork
// activation block number (nil when the chain never forked, or already past
// its ten-block extradata window by the time this core is used).
type Config struct {
	Spec Spec

	// ChainID is used to construct the signer that recovers each
	// transaction's sender address.
	ChainID uint64

	// DAOForkBlock is the block number at which the DAO extradata window
	// opens. nil disables the check entirely (matches a chain that never
	// forked, e.g. most non-mainnet test networks).
	DAOForkBlock *uint64
}
