package rpcpool

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainClient is the subset of the node API the notifier consumes.
// *ethclient.Client satisfies it.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Dialer opens a ChainClient for an RPC address.
type Dialer func(ctx context.Context, url string) (ChainClient, error)

func EthDialer(ctx context.Context, url string) (ChainClient, error) {
	return ethclient.DialContext(ctx, url)
}

// Endpoint is one RPC target. Its health fields are owned by the Pool and
// must only be touched while holding the pool lock.
type Endpoint struct {
	Name   string
	URL    string
	Tier   int
	Client ChainClient

	errorCount int
	lastUsedAt time.Time
}

// EndpointState is a point-in-time copy of an Endpoint's health.
type EndpointState struct {
	Name       string    `json:"name"`
	Tier       int       `json:"tier"`
	ErrorCount int       `json:"error_count"`
	LastUsedAt time.Time `json:"last_used_at"`
}
