// Package config holds the ledger defaults for DID operations.
package config

import (
	"os"
	"strconv"
)

// Default values
const (
	DefaultMethod          = "ethr"
	DefaultNetwork         = ""
	DefaultChainID         = int64(1)
	DefaultRPC             = "https://ethereum-rpc.publicnode.com"
	DefaultRegistryAddress = "0xdca7ef03e98e0dc2b855be647c39abe984fcf21b"
)

// Environment variable names
const (
	EnvRPC             = "ETHR_DID_RPC_URL"
	EnvChainID         = "ETHR_DID_CHAIN_ID"
	EnvRegistryAddress = "ETHR_DID_REGISTRY_ADDRESS"
	EnvNetwork         = "ETHR_DID_NETWORK"
)

// Config holds the configuration for DID operations
type Config struct {
	Method          string
	Network         string
	ChainID         int64
	RegistryAddress string // registry contract address
	RPC             string
}

// New creates a new Config instance with the provided values.
// Empty/zero values are taken from the environment, then from the defaults.
// Pass an empty Config{} to use all defaults.
func New(cfg Config) *Config {
	result := &Config{
		Method:          DefaultMethod,
		Network:         Network(),
		ChainID:         ChainID(),
		RegistryAddress: RegistryAddress(),
		RPC:             RPC(),
	}

	if cfg.Method != "" {
		result.Method = cfg.Method
	}
	if cfg.Network != "" {
		result.Network = cfg.Network
	}
	if cfg.ChainID != 0 {
		result.ChainID = cfg.ChainID
	}
	if cfg.RegistryAddress != "" {
		result.RegistryAddress = cfg.RegistryAddress
	}
	if cfg.RPC != "" {
		result.RPC = cfg.RPC
	}

	return result
}

// RPC returns the RPC URL from environment variable or default value
func RPC() string {
	if rpc := os.Getenv(EnvRPC); rpc != "" {
		return rpc
	}
	return DefaultRPC
}

// ChainID returns the Chain ID from environment variable or default value
func ChainID() int64 {
	if chainIDStr := os.Getenv(EnvChainID); chainIDStr != "" {
		if chainID, err := strconv.ParseInt(chainIDStr, 10, 64); err == nil {
			return chainID
		}
	}
	return DefaultChainID
}

// RegistryAddress returns the registry contract address from environment variable or default value
func RegistryAddress() string {
	if addr := os.Getenv(EnvRegistryAddress); addr != "" {
		return addr
	}
	return DefaultRegistryAddress
}

// Network returns the network tag from environment variable or default value
func Network() string {
	if network := os.Getenv(EnvNetwork); network != "" {
		return network
	}
	return DefaultNetwork
}
