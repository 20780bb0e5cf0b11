package contract

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Topic returns the topic0 hash for kind.
func Topic(kind Kind) (common.Hash, error) {
	parsed, err := PoolABI()
	if err != nil {
		return common.Hash{}, err
	}
	ev, ok := parsed.Events[kind.String()]
	if !ok {
		return common.Hash{}, errors.Newf("no event for kind %s", kind)
	}
	return ev.ID, nil
}

// Query builds the log filter for one kind over [from, to].
func Query(address common.Address, kind Kind, from, to uint64) (ethereum.FilterQuery, error) {
	topic, err := Topic(kind)
	if err != nil {
		return ethereum.FilterQuery{}, err
	}
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{topic}},
	}, nil
}

// Decode turns a raw log into an Event. Logs for events outside the known
// kinds decode to KindUnknown without error.
func Decode(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return Event{}, errors.Newf("log %s:%d has no topics", log.TxHash.Hex(), log.Index)
	}
	parsed, err := PoolABI()
	if err != nil {
		return Event{}, err
	}

	out := Event{
		BlockNumber: log.BlockNumber,
		TxIndex:     log.TxIndex,
		LogIndex:    log.Index,
		TxHash:      log.TxHash,
	}

	ev, err := parsed.EventByID(log.Topics[0])
	if err != nil {
		return out, nil
	}
	out.Kind = KindFromName(ev.Name)
	if out.Kind == KindUnknown {
		return out, nil
	}

	values := map[string]any{}
	if err := parsed.UnpackIntoMap(values, ev.Name, log.Data); err != nil {
		return out, errors.Wrapf(err, "failed to unpack %s data in tx %s", ev.Name, log.TxHash.Hex())
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return out, errors.Newf("%s in tx %s has %d indexed topics, expected %d", ev.Name, log.TxHash.Hex(), len(log.Topics)-1, len(indexed))
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return out, errors.Wrapf(err, "failed to parse %s topics in tx %s", ev.Name, log.TxHash.Hex())
	}

	var ok bool
	if out.User, ok = values["user"].(common.Address); !ok {
		return out, errors.Newf("%s in tx %s is missing user", ev.Name, log.TxHash.Hex())
	}
	if out.Referrer, ok = values["referrer"].(common.Address); !ok {
		return out, errors.Newf("%s in tx %s is missing referrer", ev.Name, log.TxHash.Hex())
	}
	if out.Fee, ok = values["fee"].(*big.Int); !ok {
		return out, errors.Newf("%s in tx %s is missing fee", ev.Name, log.TxHash.Hex())
	}
	return out, nil
}
