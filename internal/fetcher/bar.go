package fetcher

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	erc20ABIJSON = `[{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
)

var (
	erc20ABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// BarOptions parameterise the on-chain fallback fetcher.
type BarOptions struct {
	RPCURL       string
	BarAddress   string
	SushiAddress string
	Timeout      time.Duration
}

// Bar derives the ratio directly from the SushiBar contract state:
// SUSHI held by the bar divided by xSushi total supply.
type Bar struct {
	opts      BarOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewBar builds the on-chain ratio fetcher.
func NewBar(opts BarOptions, logger zerolog.Logger) *Bar {
	return &Bar{opts: opts, logger: logger.With().Str("component", "bar_fetcher").Logger()}
}

// FetchRatio reads the bar's SUSHI balance and the xSushi supply and
// returns their quotient at the fixed ratio precision.
func (b *Bar) FetchRatio(ctx context.Context) (decimal.Decimal, error) {
	if b.opts.RPCURL == "" {
		return decimal.Decimal{}, errors.New("ethereum rpc url not configured")
	}
	if b.opts.BarAddress == "" || b.opts.SushiAddress == "" {
		return decimal.Decimal{}, errors.New("bar and sushi contract addresses not configured")
	}

	timeout := b.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := b.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	barAddr := common.HexToAddress(b.opts.BarAddress)
	sushiAddr := common.HexToAddress(b.opts.SushiAddress)

	staked, err := b.callUint(ctx, client, sushiAddr, "balanceOf", barAddr)
	if err != nil {
		return decimal.Decimal{}, err
	}

	supply, err := b.callUint(ctx, client, barAddr, "totalSupply")
	if err != nil {
		return decimal.Decimal{}, err
	}

	if supply.Sign() == 0 {
		return decimal.Decimal{}, errors.New("xsushi total supply is zero")
	}

	// 两者均为 18 位精度，比值与小数位无关。
	ratio := decimal.NewFromBigInt(staked, 0).Div(decimal.NewFromBigInt(supply, 0))
	return ratio.Round(RatioPrecision), nil
}

func (b *Bar) callUint(ctx context.Context, client *ethclient.Client, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	payload, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := erc20ABI.Unpack(method, res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, errors.New("unexpected " + method + " response")
	}

	value, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, errors.New("failed to decode " + method + " output")
	}
	return value, nil
}

func (b *Bar) getClient(ctx context.Context) (*ethclient.Client, error) {
	b.clientMux.Lock()
	defer b.clientMux.Unlock()

	if b.client != nil {
		return b.client, nil
	}

	client, err := ethclient.DialContext(ctx, b.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	b.client = client
	return client, nil
}

var _ RatioFetcher = (*Bar)(nil)
