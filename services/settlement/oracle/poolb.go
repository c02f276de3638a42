package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const balanceOfABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// ContractCaller is the slice of the Ethereum client the oracle needs.
// *ethclient.Client satisfies it; tests substitute a stub.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PoolB reads the stable-pool budget for a week from the vault's token
// balance on chain. Weeks before the activation week report zero without
// touching the network.
type PoolB struct {
	caller         ContractCaller
	token          common.Address
	vault          common.Address
	activationWeek int64
	erc20          abi.ABI
	maxElapsed     time.Duration
}

// Config captures the oracle construction inputs.
type Config struct {
	RPCURL         string
	Token          common.Address
	Vault          common.Address
	ActivationWeek int64
	// Caller overrides the dialed client, used by tests.
	Caller ContractCaller
	// MaxRetryElapsed caps the total retry window per lookup.
	MaxRetryElapsed time.Duration
}

// New constructs the oracle, dialing the RPC endpoint unless a caller is
// injected.
func New(cfg Config) (*PoolB, error) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("oracle: parse abi: %w", err)
	}
	caller := cfg.Caller
	if caller == nil {
		if strings.TrimSpace(cfg.RPCURL) == "" {
			return nil, fmt.Errorf("oracle: rpc url is required")
		}
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("oracle: dial %s: %w", cfg.RPCURL, err)
		}
		caller = client
	}
	maxElapsed := cfg.MaxRetryElapsed
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	return &PoolB{
		caller:         caller,
		token:          cfg.Token,
		vault:          cfg.Vault,
		activationWeek: cfg.ActivationWeek,
		erc20:          parsed,
		maxElapsed:     maxElapsed,
	}, nil
}

// Balance returns the pool B budget for the supplied week in token base
// units. Transport failures surface as errors after retries are exhausted;
// the caller absorbs them as a zero pool so reward computation never blocks
// on a transient RPC fault.
func (o *PoolB) Balance(ctx context.Context, week int64) (*big.Int, error) {
	if week < o.activationWeek {
		return big.NewInt(0), nil
	}
	input, err := o.erc20.Pack("balanceOf", o.vault)
	if err != nil {
		return nil, fmt.Errorf("oracle: pack balanceOf: %w", err)
	}
	call := ethereum.CallMsg{To: &o.token, Data: input}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = o.maxElapsed

	var raw []byte
	operation := func() error {
		var callErr error
		raw, callErr = o.caller.CallContract(ctx, call, nil)
		return callErr
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("oracle: balanceOf call: %w", err)
	}

	outputs, err := o.erc20.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("oracle: unpack balanceOf: %w", err)
	}
	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("oracle: unexpected balanceOf output %T", outputs[0])
	}
	return balance, nil
}

// Disabled is a PoolB source that always reports zero, used when no RPC
// endpoint is configured.
type Disabled struct{}

// Balance always reports an empty pool.
func (Disabled) Balance(context.Context, int64) (*big.Int, error) {
	return big.NewInt(0), nil
}
