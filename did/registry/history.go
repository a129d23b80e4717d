package registry

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Attribute is the latest state of one (name, value) attribute of an identity.
type Attribute struct {
	Name    string
	Value   []byte
	ValidTo uint64 // unix seconds
	Block   uint64
}

// Delegate is the latest state of one (type, delegate) entry of an identity.
type Delegate struct {
	Type     string
	Delegate common.Address
	ValidTo  uint64 // unix seconds
	Block    uint64
}

// Identity is the ledger state of an identity address.
type Identity struct {
	Address    common.Address
	Owner      common.Address
	Changed    uint64
	Attributes []Attribute
	Delegates  []Delegate
}

// Deactivated reports whether ownership was transferred to the zero address.
func (id *Identity) Deactivated() bool {
	return id.Owner == (common.Address{})
}

// ActiveAttributes returns the attributes still valid at now, in the order
// they were last changed.
func (id *Identity) ActiveAttributes(now time.Time) []Attribute {
	var active []Attribute
	for _, a := range id.Attributes {
		if a.ValidTo > uint64(now.Unix()) {
			active = append(active, a)
		}
	}
	return active
}

// ActiveDelegates returns the delegates still valid at now.
func (id *Identity) ActiveDelegates(now time.Time) []Delegate {
	var active []Delegate
	for _, d := range id.Delegates {
		if d.ValidTo > uint64(now.Unix()) {
			active = append(active, d)
		}
	}
	return active
}

type ownerChangedEvent struct {
	Identity       common.Address
	Owner          common.Address
	PreviousChange *big.Int
}

type attributeChangedEvent struct {
	Identity       common.Address
	Name           [32]byte
	Value          []byte
	ValidTo        *big.Int
	PreviousChange *big.Int
}

type delegateChangedEvent struct {
	Identity       common.Address
	DelegateType   [32]byte
	Delegate       common.Address
	ValidTo        *big.Int
	PreviousChange *big.Int
}

// ReadIdentity walks the change history of identity backwards from the
// block reported by changed(), following previousChange pointers.
func (r *EthRegistry) ReadIdentity(ctx context.Context, identity common.Address) (*Identity, error) {
	owner, err := r.IdentityOwner(ctx, identity)
	if err != nil {
		return nil, err
	}

	last, err := r.Changed(ctx, identity)
	if err != nil {
		return nil, err
	}

	result := &Identity{Address: identity, Owner: owner, Changed: last}

	var chronological []types.Log
	visited := make(map[uint64]struct{})

	for block := last; block != 0; {
		if _, seen := visited[block]; seen || len(visited) >= maxHistoryDepth {
			break
		}
		visited[block] = struct{}{}

		logs, err := r.logsAt(ctx, identity, block)
		if err != nil {
			return nil, err
		}

		prev := uint64(0)
		for i := len(logs) - 1; i >= 0; i-- {
			p, err := r.previousChange(logs[i])
			if err != nil {
				return nil, err
			}
			if p < block {
				prev = p
			}
		}

		chronological = append(logs, chronological...)
		block = prev
	}

	attributes := make(map[string]int)
	delegates := make(map[string]int)

	for _, l := range chronological {
		switch l.Topics[0] {
		case r.abi.Events[eventAttributeChanged].ID:
			var ev attributeChangedEvent
			if err := r.contract.UnpackLog(&ev, eventAttributeChanged, l); err != nil {
				return nil, fmt.Errorf("failed to unpack %s: %w", eventAttributeChanged, err)
			}

			attr := Attribute{Name: bytes32ToString(ev.Name), Value: ev.Value, ValidTo: clampUint64(ev.ValidTo), Block: l.BlockNumber}
			key := attr.Name + "/" + hex.EncodeToString(attr.Value)
			if i, ok := attributes[key]; ok {
				result.Attributes[i] = attr
				continue
			}
			attributes[key] = len(result.Attributes)
			result.Attributes = append(result.Attributes, attr)
		case r.abi.Events[eventDelegateChanged].ID:
			var ev delegateChangedEvent
			if err := r.contract.UnpackLog(&ev, eventDelegateChanged, l); err != nil {
				return nil, fmt.Errorf("failed to unpack %s: %w", eventDelegateChanged, err)
			}

			d := Delegate{Type: bytes32ToString(ev.DelegateType), Delegate: ev.Delegate, ValidTo: clampUint64(ev.ValidTo), Block: l.BlockNumber}
			key := d.Type + "/" + d.Delegate.Hex()
			if i, ok := delegates[key]; ok {
				result.Delegates[i] = d
				continue
			}
			delegates[key] = len(result.Delegates)
			result.Delegates = append(result.Delegates, d)
		}
	}

	r.logger.Debug().
		Str("identity", identity.Hex()).
		Int("events", len(chronological)).
		Int("attributes", len(result.Attributes)).
		Msg("read identity history")

	return result, nil
}

func (r *EthRegistry) logsAt(ctx context.Context, identity common.Address, block uint64) ([]types.Log, error) {
	b := new(big.Int).SetUint64(block)

	logs, err := r.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: b,
		ToBlock:   b,
		Addresses: []common.Address{r.contractAddr},
		Topics: [][]common.Hash{
			{
				r.abi.Events[eventOwnerChanged].ID,
				r.abi.Events[eventAttributeChanged].ID,
				r.abi.Events[eventDelegateChanged].ID,
			},
			{common.BytesToHash(identity.Bytes())},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter registry logs at block %d: %w", block, err)
	}

	valid := logs[:0]
	for _, l := range logs {
		if len(l.Topics) > 1 && !l.Removed {
			valid = append(valid, l)
		}
	}

	return valid, nil
}

func (r *EthRegistry) previousChange(l types.Log) (uint64, error) {
	switch l.Topics[0] {
	case r.abi.Events[eventOwnerChanged].ID:
		var ev ownerChangedEvent
		if err := r.contract.UnpackLog(&ev, eventOwnerChanged, l); err != nil {
			return 0, fmt.Errorf("failed to unpack %s: %w", eventOwnerChanged, err)
		}
		return clampUint64(ev.PreviousChange), nil
	case r.abi.Events[eventAttributeChanged].ID:
		var ev attributeChangedEvent
		if err := r.contract.UnpackLog(&ev, eventAttributeChanged, l); err != nil {
			return 0, fmt.Errorf("failed to unpack %s: %w", eventAttributeChanged, err)
		}
		return clampUint64(ev.PreviousChange), nil
	case r.abi.Events[eventDelegateChanged].ID:
		var ev delegateChangedEvent
		if err := r.contract.UnpackLog(&ev, eventDelegateChanged, l); err != nil {
			return 0, fmt.Errorf("failed to unpack %s: %w", eventDelegateChanged, err)
		}
		return clampUint64(ev.PreviousChange), nil
	default:
		return 0, nil
	}
}

func clampUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() < 0 {
		return 0
	}
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}

func bytes32ToString(b [32]byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}
