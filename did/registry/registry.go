// Package registry is the ledger client of the ethr DID registry contract.
//
// It reads the current owner and the attribute/delegate history of an
// identity, and builds signed-but-unsent transactions that publish keys.
package registry

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/pilacorp/go-ethr-vc/did/config"
)

//go:embed abi/ethr_did_registry.json
var registryABIJSON []byte

var (
	parsedABI    abi.ABI
	parseABIOnce sync.Once
	errParseABI  error
)

// Event names.
const (
	eventOwnerChanged     = "DIDOwnerChanged"
	eventAttributeChanged = "DIDAttributeChanged"
	eventDelegateChanged  = "DIDDelegateChanged"
)

// Default gas settings for built transactions.
const (
	DefaultGasLimit = uint64(120000)
	maxHistoryDepth = 1024
)

// ErrNoBackend is returned by read calls on a registry built without a ledger backend.
var ErrNoBackend = errors.New("registry has no ledger backend")

// loadABI ensures the ABI is parsed exactly once.
func loadABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		type hardhatArtifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		var artifact hardhatArtifact
		if err := json.Unmarshal(registryABIJSON, &artifact); err != nil {
			errParseABI = fmt.Errorf("failed to unmarshal artifact JSON: %w", err)
			return
		}
		parsedABI, errParseABI = abi.JSON(strings.NewReader(string(artifact.ABI)))
	})
	return parsedABI, errParseABI
}

// Backend is the subset of an Ethereum client the registry reads through.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractCaller
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Reader reads the ledger state of an identity.
type Reader interface {
	ReadIdentity(ctx context.Context, identity common.Address) (*Identity, error)
}

// ClientConfig holds configuration for the registry client.
type ClientConfig struct {
	ContractAddress string
	ChainID         int64
	// Optional: defaults to 0 if not set, suitable for gas-free subnets.
	GasPrice *big.Int
	GasLimit uint64
}

// EthRegistry is the ethr DID registry client.
type EthRegistry struct {
	contract     *bind.BoundContract
	backend      Backend
	abi          abi.ABI
	chainID      *big.Int
	contractAddr common.Address
	gasPrice     *big.Int
	gasLimit     uint64
	logger       zerolog.Logger
}

// Option configures an EthRegistry.
type Option func(*EthRegistry)

// WithBackend sets the ledger backend used for reads.
func WithBackend(b Backend) Option {
	return func(r *EthRegistry) {
		r.backend = b
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *EthRegistry) {
		r.logger = l
	}
}

// NewEthRegistry creates a registry client. Without WithBackend, only the
// transaction builders are usable.
func NewEthRegistry(cfg ClientConfig, opts ...Option) (*EthRegistry, error) {
	if cfg.ContractAddress == "" {
		return nil, errors.New("contract address is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	contractABI, err := loadABI()
	if err != nil {
		return nil, err
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	gasPrice := cfg.GasPrice
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}

	r := &EthRegistry{
		abi:          contractABI,
		chainID:      big.NewInt(cfg.ChainID),
		contractAddr: common.HexToAddress(cfg.ContractAddress),
		gasPrice:     gasPrice,
		gasLimit:     gasLimit,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var caller bind.ContractCaller
	if r.backend != nil {
		caller = r.backend
	}
	r.contract = bind.NewBoundContract(r.contractAddr, contractABI, caller, nil, nil)

	return r, nil
}

// Dial connects to cfg.RPC and returns a registry reading from it.
func Dial(ctx context.Context, cfg *config.Config, opts ...Option) (*EthRegistry, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	return NewEthRegistry(ClientConfig{
		ContractAddress: cfg.RegistryAddress,
		ChainID:         cfg.ChainID,
	}, append([]Option{WithBackend(client)}, opts...)...)
}

// Address returns the registry contract address.
func (r *EthRegistry) Address() common.Address {
	return r.contractAddr
}

// ChainID returns the chain the registry lives on.
func (r *EthRegistry) ChainID() int64 {
	return r.chainID.Int64()
}

// IdentityOwner returns the current owner of identity.
func (r *EthRegistry) IdentityOwner(ctx context.Context, identity common.Address) (common.Address, error) {
	if r.backend == nil {
		return common.Address{}, ErrNoBackend
	}

	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "identityOwner", identity); err != nil {
		return common.Address{}, fmt.Errorf("failed to call identityOwner: %w", err)
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("identityOwner returned %d values", len(out))
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("identityOwner returned %T", out[0])
	}

	return owner, nil
}

// Changed returns the block of the last change to identity, 0 when the
// identity was never modified.
func (r *EthRegistry) Changed(ctx context.Context, identity common.Address) (uint64, error) {
	if r.backend == nil {
		return 0, ErrNoBackend
	}

	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "changed", identity); err != nil {
		return 0, fmt.Errorf("failed to call changed: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("changed returned %d values", len(out))
	}

	block, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("changed returned %T", out[0])
	}

	return block.Uint64(), nil
}
