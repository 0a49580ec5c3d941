// Package fundmetest provides in-memory models of the FundMe contract and the
// mock price feed for the ethtest chain.
package fundmetest

import (
	"fmt"
	"math/big"

	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum/ethtest"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Placeholder bytecode that identifies the models in deployment
// transactions.
var (
	FundMeBytecode     = []byte("\xfe\x00fund-me-model")
	AggregatorBytecode = []byte("\xfe\x00mock-v3-aggregator-model")
)

const aggregatorVersion = 4

// FundMeArtifact returns a deployable artifact for the FundMe model.
func FundMeArtifact() contract.Artifact {
	return contract.Artifact{
		ContractName: fundme.ContractName,
		ABI:          fundme.ContractABI(),
		RawABI:       []byte(fundme.ABI),
		Bytecode:     FundMeBytecode,
	}
}

// AggregatorArtifact returns a deployable artifact for the price feed model.
func AggregatorArtifact() contract.Artifact {
	return contract.Artifact{
		ContractName: fundme.AggregatorName,
		ABI:          fundme.AggregatorContractABI(),
		RawABI:       []byte(fundme.AggregatorABI),
		Bytecode:     AggregatorBytecode,
	}
}

// Register teaches the chain how to deploy both models.
func Register(chain *ethtest.Chain) {
	chain.Register(FundMeBytecode, newFundMe)
	chain.Register(AggregatorBytecode, newAggregator)
}

// =============================================================================

// FundMe models the FundMe contract.
type FundMe struct {
	abi       abi.ABI
	owner     common.Address
	priceFeed common.Address
	funders   []common.Address
	funded    map[common.Address]*big.Int
}

func newFundMe(env *ethtest.Env, args []byte) (ethtest.Contract, error) {
	contractABI := fundme.ContractABI()

	vals, err := contractABI.Constructor.Inputs.Unpack(args)
	if err != nil {
		return nil, fmt.Errorf("fundme constructor: %w", err)
	}

	f := FundMe{
		abi:       contractABI,
		owner:     env.From,
		priceFeed: vals[0].(common.Address),
		funded:    make(map[common.Address]*big.Int),
	}

	return &f, nil
}

// Execute implements the ethtest.Contract interface. Empty input is the
// receive function, which funds.
func (f *FundMe) Execute(env *ethtest.Env, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, f.fund(env)
	}

	method, args, err := ethtest.Dispatch(f.abi, input)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "fund":
		return nil, f.fund(env)

	case "withdraw", "cheaperWithdraw":
		return nil, f.withdraw(env)

	case "MINIMUM_USD":
		return ethtest.Return(method, fundme.MinimumUSD)

	case "getAddressToAmountFunded":
		amount, exists := f.funded[args[0].(common.Address)]
		if !exists {
			amount = new(big.Int)
		}
		return ethtest.Return(method, amount)

	case "getFunders":
		index := args[0].(*big.Int)
		if !index.IsInt64() || index.Int64() >= int64(len(f.funders)) {
			return nil, ethtest.RevertString("index out of bounds")
		}
		return ethtest.Return(method, f.funders[index.Int64()])

	case "getOwner":
		return ethtest.Return(method, f.owner)

	case "getPriceFeed":
		return ethtest.Return(method, f.priceFeed)

	case "getVersion":
		out, err := env.Call(f.priceFeed, mustPack("version"))
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, fmt.Errorf("fundme: method %s not modeled", method.Name)
}

func (f *FundMe) fund(env *ethtest.Env) error {
	out, err := env.Call(f.priceFeed, mustPack("latestRoundData"))
	if err != nil {
		return err
	}

	aggABI := fundme.AggregatorContractABI()
	vals, err := aggABI.Methods["latestRoundData"].Outputs.Unpack(out)
	if err != nil {
		return err
	}

	usd := fundme.USDValue(env.Value, vals[1].(*big.Int), aggregatorDecimals)
	if usd.Cmp(fundme.MinimumUSD) < 0 {
		return ethtest.RevertString(string(fundme.ErrNotEnoughFunds))
	}

	if env.Committing() {
		prev, exists := f.funded[env.From]
		if !exists {
			prev = new(big.Int)
		}
		f.funded[env.From] = new(big.Int).Add(prev, env.Value)
		f.funders = append(f.funders, env.From)
	}

	return nil
}

func (f *FundMe) withdraw(env *ethtest.Env) error {
	if env.From != f.owner {
		return ethtest.Revert(f.abi, "FundMe__NotOwner")
	}

	if err := env.Transfer(f.owner, env.Balance()); err != nil {
		return ethtest.RevertString("Call failed")
	}

	if env.Committing() {
		for _, funder := range f.funders {
			delete(f.funded, funder)
		}
		f.funders = nil
	}

	return nil
}

// Funders returns the number of modeled funders for assertions.
func (f *FundMe) Funders() int {
	return len(f.funders)
}

// =============================================================================

// aggregatorDecimals is what the FundMe price converter assumes of the
// feed.
const aggregatorDecimals = 8

// Aggregator models the MockV3Aggregator contract.
type Aggregator struct {
	abi       abi.ABI
	decimals  uint8
	answer    *big.Int
	round     *big.Int
	updatedAt *big.Int
}

func newAggregator(env *ethtest.Env, args []byte) (ethtest.Contract, error) {
	contractABI := fundme.AggregatorContractABI()

	vals, err := contractABI.Constructor.Inputs.Unpack(args)
	if err != nil {
		return nil, fmt.Errorf("aggregator constructor: %w", err)
	}

	a := Aggregator{
		abi:       contractABI,
		decimals:  vals[0].(uint8),
		answer:    vals[1].(*big.Int),
		round:     big.NewInt(1),
		updatedAt: new(big.Int).SetUint64(env.Time),
	}

	return &a, nil
}

// Execute implements the ethtest.Contract interface.
func (a *Aggregator) Execute(env *ethtest.Env, input []byte) ([]byte, error) {
	method, args, err := ethtest.Dispatch(a.abi, input)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "decimals":
		return ethtest.Return(method, a.decimals)

	case "description":
		return ethtest.Return(method, "v0.6/tests/MockV3Aggregator.sol")

	case "version":
		return ethtest.Return(method, big.NewInt(aggregatorVersion))

	case "latestAnswer":
		return ethtest.Return(method, a.answer)

	case "latestRoundData":
		return ethtest.Return(method, a.round, a.answer, a.updatedAt, a.updatedAt, a.round)

	case "updateAnswer":
		if env.Committing() {
			a.answer = args[0].(*big.Int)
			a.round = new(big.Int).Add(a.round, big.NewInt(1))
			a.updatedAt = new(big.Int).SetUint64(env.Time)
		}
		return nil, nil
	}

	return nil, fmt.Errorf("aggregator: method %s not modeled", method.Name)
}

func mustPack(method string) []byte {
	input, err := fundme.AggregatorContractABI().Pack(method)
	if err != nil {
		panic(err)
	}
	return input
}
