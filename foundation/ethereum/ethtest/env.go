package ethtest

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Env is the execution environment handed to a contract model. Models must
// only mutate their own state when Committing reports true.
type Env struct {
	chain   *Chain
	commit  bool
	credits []credit
	logs    []*types.Log

	Self  common.Address
	From  common.Address
	Value *big.Int
	Time  uint64
	Block uint64
}

type credit struct {
	from   common.Address
	to     common.Address
	amount *big.Int
}

// Committing reports whether the execution belongs to a transaction.
func (e *Env) Committing() bool {
	return e.commit
}

// Balance returns the contract balance including the value sent with the
// current call.
func (e *Env) Balance() *big.Int {
	bal := new(big.Int).Set(e.chain.balance(e.Self))
	if !e.commit {
		bal.Add(bal, e.Value)
	}
	return bal
}

// Transfer moves value from the contract to the specified account.
func (e *Env) Transfer(to common.Address, amount *big.Int) error {
	if e.Balance().Cmp(amount) < 0 {
		return errors.New("insufficient contract balance")
	}

	if e.commit {
		e.move(e.Self, to, amount)
	}

	return nil
}

// Emit records a log for the contract.
func (e *Env) Emit(event abi.Event, indexed []common.Hash, data ...any) error {
	packed, err := event.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", event.Name, err)
	}

	if !e.commit {
		return nil
	}

	topics := append([]common.Hash{event.ID}, indexed...)
	e.logs = append(e.logs, &types.Log{
		Address: e.Self,
		Topics:  topics,
		Data:    packed,
	})

	return nil
}

// Call executes a call from this contract into another one.
func (e *Env) Call(to common.Address, input []byte) ([]byte, error) {
	contract, exists := e.chain.contracts[to]
	if !exists {
		return nil, fmt.Errorf("no contract at %s", to)
	}

	nested := Env{
		chain:  e.chain,
		commit: e.commit,
		Self:   to,
		From:   e.Self,
		Value:  new(big.Int),
		Time:   e.Time,
		Block:  e.Block,
	}

	out, err := contract.Execute(&nested, input)
	if err != nil {
		nested.rollback()
		return nil, err
	}

	e.credits = append(e.credits, nested.credits...)
	e.logs = append(e.logs, nested.logs...)

	return out, nil
}

// credit moves the call value into the contract.
func (e *Env) credit() error {
	if e.Value.Sign() == 0 {
		return nil
	}

	if e.chain.balance(e.From).Cmp(e.Value) < 0 {
		return errors.New("insufficient funds for value")
	}

	e.move(e.From, e.Self, e.Value)
	return nil
}

func (e *Env) move(from, to common.Address, amount *big.Int) {
	c := e.chain
	c.balances[from] = new(big.Int).Sub(c.balance(from), amount)
	c.balances[to] = new(big.Int).Add(c.balance(to), amount)
	e.credits = append(e.credits, credit{from: from, to: to, amount: new(big.Int).Set(amount)})
}

// rollback undoes every value movement in reverse order.
func (e *Env) rollback() {
	c := e.chain
	for i := len(e.credits) - 1; i >= 0; i-- {
		cr := e.credits[i]
		c.balances[cr.to] = new(big.Int).Sub(c.balance(cr.to), cr.amount)
		c.balances[cr.from] = new(big.Int).Add(c.balance(cr.from), cr.amount)
	}
	e.credits = nil
	e.logs = nil
}

// =============================================================================

// RevertError is returned by models when execution reverts. It carries the
// revert data the way a JSON-RPC node does.
type RevertError struct {
	Reason string
	Data   []byte
}

// Error implements the error interface.
func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// ErrorCode implements the rpc.Error interface.
func (e *RevertError) ErrorCode() int {
	return 3
}

// ErrorData implements the rpc.DataError interface.
func (e *RevertError) ErrorData() any {
	return hexutil.Encode(e.Data)
}

// Revert constructs a revert for the named custom error in the ABI.
func Revert(contractABI abi.ABI, name string, args ...any) error {
	abiErr, exists := contractABI.Errors[name]
	if !exists {
		panic(fmt.Sprintf("abi has no error %q", name))
	}

	packed, err := abiErr.Inputs.Pack(args...)
	if err != nil {
		panic(fmt.Sprintf("pack error %q: %s", name, err))
	}

	data := append(abiErr.ID.Bytes()[:4:4], packed...)
	return &RevertError{Reason: name + "()", Data: data}
}

// RevertString constructs a revert carrying an Error(string) reason.
func RevertString(reason string) error {
	typ, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: typ}}.Pack(reason)
	if err != nil {
		panic(err)
	}

	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return &RevertError{Reason: reason, Data: append(selector, packed...)}
}

// =============================================================================

// Dispatch unpacks the input against the ABI and returns the method and its
// arguments.
func Dispatch(contractABI abi.ABI, input []byte) (*abi.Method, []any, error) {
	if len(input) < 4 {
		return nil, nil, errors.New("missing selector")
	}

	method, err := contractABI.MethodById(input[:4])
	if err != nil {
		return nil, nil, err
	}

	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}

	return method, args, nil
}

// Return packs the method outputs.
func Return(method *abi.Method, values ...any) ([]byte, error) {
	return method.Outputs.Pack(values...)
}

// Topic left pads the address into an indexed topic.
func Topic(address common.Address) common.Hash {
	return common.BytesToHash(address.Bytes())
}
