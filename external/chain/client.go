package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/metrics"
)

// IRegistryClient reads the proof registry contract and transaction state.
type IRegistryClient interface {
	IsRegistered(ctx context.Context, proofHash common.Hash) (bool, error)
	// GetProof returns nil when proofHash has no record.
	GetProof(ctx context.Context, proofHash common.Hash) (*OnChainProof, error)
	// GetReceipt returns nil while the transaction is unknown or pending.
	GetReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	GetTransactionTo(ctx context.Context, txHash common.Hash) (*common.Address, error)
	ContractAddress() common.Address
	ChainID() int64
}

type Client struct {
	ethClient *ethclient.Client
	contract  common.Address
	cfg       *config.ChainConfig
}

func NewClient(cfg *config.ChainConfig) IRegistryClient {
	ethClient, err := ethclient.Dial(cfg.RPCAddrs[0])
	if err != nil {
		panic("new eth client error")
	}
	return &Client{
		ethClient: ethClient,
		contract:  common.HexToAddress(cfg.ContractAddress),
		cfg:       cfg,
	}
}

func (c *Client) ContractAddress() common.Address {
	return c.contract
}

func (c *Client) ChainID() int64 {
	return c.cfg.ChainID
}

func (c *Client) IsRegistered(ctx context.Context, proofHash common.Hash) (bool, error) {
	data, err := RegistryABI.Pack(methodIsRegistered, proofHash)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, data)
	if err != nil {
		return false, err
	}
	return unpackIsRegistered(out)
}

func (c *Client) GetProof(ctx context.Context, proofHash common.Hash) (*OnChainProof, error) {
	data, err := RegistryABI.Pack(methodGetProof, proofHash)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	proof, err := unpackGetProof(proofHash, out)
	if err != nil {
		return nil, err
	}
	if proof.Signer == (common.Address{}) {
		return nil, nil
	}
	return proof, nil
}

func (c *Client) GetReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout())
	defer cancel()
	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		metrics.ChainRPCErrorsCounter.Inc()
		return nil, fmt.Errorf("get receipt of %s: %w", txHash.Hex(), err)
	}
	return receipt, nil
}

func (c *Client) GetTransactionTo(ctx context.Context, txHash common.Hash) (*common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout())
	defer cancel()
	tx, _, err := c.ethClient.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		metrics.ChainRPCErrorsCounter.Inc()
		return nil, fmt.Errorf("get transaction %s: %w", txHash.Hex(), err)
	}
	return tx.To(), nil
}

func (c *Client) call(ctx context.Context, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout())
	defer cancel()
	out, err := c.ethClient.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		metrics.ChainRPCErrorsCounter.Inc()
		return nil, fmt.Errorf("call registry %s: %w", c.contract.Hex(), err)
	}
	return out, nil
}
