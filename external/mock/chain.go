package mock

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bnb-chain/verivid-hub/external/chain"
)

// RegistryClient is an in-memory proof registry. Transactions without a receipt are pending.
type RegistryClient struct {
	mu       sync.RWMutex
	contract common.Address
	chainID  int64
	proofs   map[common.Hash]*chain.OnChainProof
	receipts map[common.Hash]*types.Receipt
	txTo     map[common.Hash]common.Address
	err      error
	calls    int
}

func NewRegistryClient(contract common.Address, chainID int64) *RegistryClient {
	return &RegistryClient{
		contract: contract,
		chainID:  chainID,
		proofs:   make(map[common.Hash]*chain.OnChainProof),
		receipts: make(map[common.Hash]*types.Receipt),
		txTo:     make(map[common.Hash]common.Address),
	}
}

// RegisterProof simulates a mined registerProof transaction sent by signer.
func (c *RegistryClient) RegisterProof(txHash, proofHash common.Hash, signer common.Address, metadataUri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.proofs[proofHash]; !ok {
		c.proofs[proofHash] = &chain.OnChainProof{
			ProofHash:   proofHash,
			Signer:      signer,
			Timestamp:   uint64(time.Now().Unix()),
			MetadataUri: metadataUri,
		}
	}
	c.receipts[txHash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash, BlockNumber: big.NewInt(1)}
	c.txTo[txHash] = c.contract
}

// AddTransaction records a mined transaction that did not touch the registry state.
func (c *RegistryClient) AddTransaction(txHash common.Hash, to common.Address, status uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[txHash] = &types.Receipt{Status: status, TxHash: txHash, BlockNumber: big.NewInt(1)}
	c.txTo[txHash] = to
}

// SetError makes every following call fail with err until reset with nil.
func (c *RegistryClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *RegistryClient) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

func (c *RegistryClient) ContractAddress() common.Address {
	return c.contract
}

func (c *RegistryClient) ChainID() int64 {
	return c.chainID
}

func (c *RegistryClient) IsRegistered(_ context.Context, proofHash common.Hash) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.proofs[proofHash]
	return ok, nil
}

func (c *RegistryClient) GetProof(_ context.Context, proofHash common.Hash) (*chain.OnChainProof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	proof, ok := c.proofs[proofHash]
	if !ok {
		return nil, nil
	}
	cp := *proof
	return &cp, nil
}

func (c *RegistryClient) GetReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.receipts[txHash], nil
}

func (c *RegistryClient) GetTransactionTo(_ context.Context, txHash common.Hash) (*common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	to, ok := c.txTo[txHash]
	if !ok {
		return nil, nil
	}
	return &to, nil
}
