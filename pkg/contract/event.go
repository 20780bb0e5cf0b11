package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind is the closed set of contract events the notifier acts on.
type Kind int

const (
	// KindUnknown covers every other event; it is never dispatched.
	KindUnknown Kind = iota
	KindJoin
	KindRejoin
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "Join"
	case KindRejoin:
		return "Rejoin"
	default:
		return "Unknown"
	}
}

// KindFromName maps an ABI event name to its Kind.
func KindFromName(name string) Kind {
	switch name {
	case "Join":
		return KindJoin
	case "Rejoin":
		return KindRejoin
	default:
		return KindUnknown
	}
}

// Event is a decoded contract log.
type Event struct {
	Kind        Kind
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
	TxHash      common.Hash
	User        common.Address
	Referrer    common.Address
	Fee         *big.Int
}

// Less orders events by (block number, transaction index, log index), the
// order in which the chain emitted them.
func (e Event) Less(other Event) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	if e.TxIndex != other.TxIndex {
		return e.TxIndex < other.TxIndex
	}
	return e.LogIndex < other.LogIndex
}
