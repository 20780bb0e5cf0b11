package contract

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUser     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testReferrer = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func buildLog(t *testing.T, kind Kind, fee *big.Int) types.Log {
	t.Helper()
	parsed, err := PoolABI()
	require.NoError(t, err)
	ev := parsed.Events[kind.String()]
	data, err := ev.Inputs.NonIndexed().Pack(fee)
	require.NoError(t, err)
	return types.Log{
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(testUser.Bytes()),
			common.BytesToHash(testReferrer.Bytes()),
		},
		Data:        data,
		BlockNumber: 100,
		TxIndex:     3,
		Index:       7,
		TxHash:      common.HexToHash("0xabc"),
	}
}

func TestDecode_JoinAndRejoin(t *testing.T) {
	fee := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	for _, kind := range []Kind{KindJoin, KindRejoin} {
		ev, err := Decode(buildLog(t, kind, fee))
		require.NoError(t, err)
		assert.Equal(t, kind, ev.Kind)
		assert.Equal(t, testUser, ev.User)
		assert.Equal(t, testReferrer, ev.Referrer)
		assert.Equal(t, 0, fee.Cmp(ev.Fee))
		assert.Equal(t, uint64(100), ev.BlockNumber)
		assert.Equal(t, uint(3), ev.TxIndex)
		assert.Equal(t, uint(7), ev.LogIndex)
	}
}

func TestDecode_UnknownTopicIgnored(t *testing.T) {
	ev, err := Decode(types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}})
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(types.Log{})
	require.Error(t, err)

	log := buildLog(t, KindJoin, big.NewInt(1))
	log.Topics = log.Topics[:2]
	_, err = Decode(log)
	require.Error(t, err)

	log = buildLog(t, KindJoin, big.NewInt(1))
	log.Data = log.Data[:10]
	_, err = Decode(log)
	require.Error(t, err)
}

func TestQuery_TopicPerKind(t *testing.T) {
	addr := common.HexToAddress("0xaF1D24B42937Ac8Dfa9e353dc50E40980F2D30E2")
	q, err := Query(addr, KindRejoin, 5, 9)
	require.NoError(t, err)
	topic, err := Topic(KindRejoin)
	require.NoError(t, err)

	assert.Equal(t, []common.Address{addr}, q.Addresses)
	assert.Equal(t, [][]common.Hash{{topic}}, q.Topics)
	assert.Equal(t, int64(5), q.FromBlock.Int64())
	assert.Equal(t, int64(9), q.ToBlock.Int64())

	_, err = Topic(KindUnknown)
	require.Error(t, err)
}

func TestEventLess(t *testing.T) {
	a := Event{BlockNumber: 1, TxIndex: 5}
	b := Event{BlockNumber: 2, TxIndex: 0}
	c := Event{BlockNumber: 2, TxIndex: 0, LogIndex: 1}
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(b))
}

type fakeCaller struct {
	data []byte
	msg  ethereum.CallMsg
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.msg = msg
	return f.data, nil
}

func TestReadStats(t *testing.T) {
	parsed, err := PoolABI()
	require.NoError(t, err)
	received, _ := new(big.Int).SetString("1234500000000000000000", 10)
	data, err := parsed.Methods["getContractStats"].Outputs.Pack(
		big.NewInt(42), big.NewInt(1), received, big.NewInt(3), big.NewInt(4),
	)
	require.NoError(t, err)

	addr := common.HexToAddress("0xaF1D24B42937Ac8Dfa9e353dc50E40980F2D30E2")
	caller := &fakeCaller{data: data}
	stats, err := ReadStats(t.Context(), caller, addr)
	require.NoError(t, err)

	assert.Equal(t, int64(42), stats.TotalUsers.Int64())
	assert.Equal(t, 0, received.Cmp(stats.TotalFundsReceived))
	assert.Equal(t, &addr, caller.msg.To)
	assert.Equal(t, parsed.Methods["getContractStats"].ID, caller.msg.Data[:4])
	assert.Equal(t, "1235", FormatUnits(stats.TotalFundsReceived, TokenDecimals, 0))
	assert.Equal(t, "1234.50", FormatUnits(stats.TotalFundsReceived, TokenDecimals, 2))
}
