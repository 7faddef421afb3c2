package elementorder

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ChainID represents a blockchain chain ID
type ChainID int64

const (
	ChainIDEthereum       ChainID = 1
	ChainIDEthereumGoerli ChainID = 5
	ChainIDBsc            ChainID = 56
	ChainIDBscTestnet     ChainID = 97
	ChainIDPolygon        ChainID = 137
	ChainIDPolygonMumbai  ChainID = 80001
	ChainIDAvalanche      ChainID = 43114
	ChainIDAvalancheFuji  ChainID = 43113
)

// NetworkConfig holds the deployment addresses of one chain
type NetworkConfig struct {
	// Exchange is the Element exchange, also the EIP712 verifying contract.
	Exchange      string
	WrappedNative string
	// APIChain is the chain name used by the order book API.
	APIChain string
}

// Networks maps chain IDs to their deployment. Treat it as read only.
type Networks map[ChainID]NetworkConfig

// DefaultNetworks returns the known Element deployments
func DefaultNetworks() Networks {
	return Networks{
		ChainIDEthereum: {
			Exchange:      "0x20f780a973856b93f63670377900c1d2a50a77c4",
			WrappedNative: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			APIChain:      "eth",
		},
		ChainIDEthereumGoerli: {
			Exchange:      "0x7fed7ed540c0731088190fed191fcf854ed65efa",
			WrappedNative: "0xb4fbf271143f4fbf7b91a5ded31805e42b2208d6",
			APIChain:      "eth",
		},
		ChainIDBsc: {
			Exchange:      "0xb3e3dfcb2d9f3dde16d78b9e6eb3538eb32b5ae1",
			WrappedNative: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
			APIChain:      "bsc",
		},
		ChainIDBscTestnet: {
			Exchange:      "0x30fad3918084eba4379fd01e441a3bb9902f0843",
			WrappedNative: "0xae13d989dac2f0debff460ac112a837c89baa7cd",
			APIChain:      "bsc",
		},
		ChainIDPolygon: {
			Exchange:      "0xeaf5453b329eb38be159a872a6ce91c9a8fb0260",
			WrappedNative: "0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270",
			APIChain:      "polygon",
		},
		ChainIDPolygonMumbai: {
			Exchange:      "0x2431e7671d1557d991a138c7af5d4cd223a605d6",
			WrappedNative: "0x9c3c9283d3e44854697cd22d3faa240cfb032889",
			APIChain:      "polygon",
		},
		ChainIDAvalanche: {
			Exchange:      "0x18cd9270dbdca86d470cfb3be1b156241fffa9de",
			WrappedNative: "0xb31f66aa3c1e785363f0875a1b74e27b85fd66c7",
			APIChain:      "avalanche",
		},
		ChainIDAvalancheFuji: {
			Exchange:      "0xd089757a20a36b0978156659cc1063b929da76ab",
			WrappedNative: "0xd00ae08403b9bbb9124bb305c09058e32c39a48c",
			APIChain:      "avalanche",
		},
	}
}

// Lookup returns the deployment of chainID or ErrUnsupportedChain
func (n Networks) Lookup(chainID ChainID) (NetworkConfig, error) {
	network, ok := n[chainID]
	if !ok || network.Exchange == "" {
		return NetworkConfig{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}
	return network, nil
}

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	Host    string
	APIKey  string
	ChainID ChainID
	// RPCURL and PrivateKey are optional. Without an RPC endpoint the
	// client cannot check fillability or submit transactions.
	RPCURL     string
	PrivateKey string
	// Networks overrides DefaultNetworks when set.
	Networks Networks

	FetchLimit         int
	RequestTimeout     time.Duration
	CheckFillability   bool
	FillabilityTimeout time.Duration
	CheckConcurrency   int

	DatabaseURL string
	LogLevel    string
}

// LoadClientConfig loads configuration from ELEMENT_* environment variables.
// A .env file in the working directory is read first when present.
func LoadClientConfig() (ClientConfig, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	config := ClientConfig{
		Host:               getEnvString("ELEMENT_API_HOST", DefaultAPIHost),
		APIKey:             getEnvString("ELEMENT_API_KEY", ""),
		ChainID:            ChainID(getEnvInt("ELEMENT_CHAIN_ID", int(ChainIDEthereum))),
		RPCURL:             getEnvString("ELEMENT_RPC_URL", ""),
		PrivateKey:         getEnvString("ELEMENT_PRIVATE_KEY", ""),
		FetchLimit:         getEnvInt("ELEMENT_FETCH_LIMIT", 50),
		RequestTimeout:     getEnvDuration("ELEMENT_REQUEST_TIMEOUT", 10*time.Second),
		CheckFillability:   getEnvBool("ELEMENT_CHECK_FILLABILITY", false),
		FillabilityTimeout: getEnvDuration("ELEMENT_FILLABILITY_TIMEOUT", 10*time.Second),
		CheckConcurrency:   getEnvInt("ELEMENT_CHECK_CONCURRENCY", 8),
		DatabaseURL:        getEnvString("ELEMENT_DATABASE_URL", ""),
		LogLevel:           getEnvString("ELEMENT_LOG_LEVEL", "info"),
	}
	return config, config.Validate()
}

// Validate validates the configuration
func (c *ClientConfig) Validate() error {
	networks := c.Networks
	if networks == nil {
		networks = DefaultNetworks()
	}
	if _, err := networks.Lookup(c.ChainID); err != nil {
		return err
	}
	if c.FetchLimit < 0 || c.FetchLimit > MaxFetchLimit {
		return &InvalidParamError{Message: fmt.Sprintf("fetch limit must be between 1 and %d, got %d", MaxFetchLimit, c.FetchLimit)}
	}
	if c.CheckConcurrency < 0 {
		return &InvalidParamError{Message: fmt.Sprintf("invalid check concurrency: %d", c.CheckConcurrency)}
	}
	return nil
}

// String returns a safe string representation (without sensitive data)
func (c *ClientConfig) String() string {
	return fmt.Sprintf(
		"Client{Host:%s, Chain:%d, RPC:%v, Fillability:%v, Concurrency:%d, Store:%v}",
		c.Host, c.ChainID, c.RPCURL != "", c.CheckFillability, c.CheckConcurrency, c.DatabaseURL != "",
	)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		switch strings.ToLower(value) {
		case "yes", "y", "on":
			return true
		case "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
