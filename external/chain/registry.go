package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const registryABIJson = `[
  {"inputs":[{"name":"proofHash","type":"bytes32"},{"name":"metadataUri","type":"string"}],"name":"registerProof","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"proofHash","type":"bytes32"}],"name":"isRegistered","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"proofHash","type":"bytes32"}],"name":"getProof","outputs":[{"name":"signer","type":"address"},{"name":"timestamp","type":"uint256"},{"name":"metadataUri","type":"string"}],"stateMutability":"view","type":"function"}
]`

const (
	methodRegisterProof = "registerProof"
	methodIsRegistered  = "isRegistered"
	methodGetProof      = "getProof"
)

// RegistryABI is the interface of the on-chain proof registry.
var RegistryABI = mustParseABI(registryABIJson)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// OnChainProof is the registry record of a proof hash.
type OnChainProof struct {
	ProofHash   common.Hash
	Signer      common.Address
	Timestamp   uint64
	MetadataUri string
}

// PackRegisterProof builds the calldata of registerProof(proofHash, metadataUri).
func PackRegisterProof(proofHash common.Hash, metadataUri string) ([]byte, error) {
	return RegistryABI.Pack(methodRegisterProof, proofHash, metadataUri)
}

func unpackGetProof(proofHash common.Hash, out []byte) (*OnChainProof, error) {
	values, err := RegistryABI.Unpack(methodGetProof, out)
	if err != nil {
		return nil, err
	}
	signer := *abi.ConvertType(values[0], new(common.Address)).(*common.Address)
	timestamp := abi.ConvertType(values[1], new(big.Int)).(*big.Int)
	metadataUri := *abi.ConvertType(values[2], new(string)).(*string)
	return &OnChainProof{
		ProofHash:   proofHash,
		Signer:      signer,
		Timestamp:   timestamp.Uint64(),
		MetadataUri: metadataUri,
	}, nil
}

func unpackIsRegistered(out []byte) (bool, error) {
	values, err := RegistryABI.Unpack(methodIsRegistered, out)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(values[0], new(bool)).(*bool), nil
}
