package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/metrics"
	"github.com/bnb-chain/verivid-hub/util"
)

const (
	authApp          = "VeriVid Authentication"
	typedDataDomain  = "VeriVid"
	typedDataPrimary = "Authentication"
	nonceBytes       = 32
)

// AuthMessage is the text a wallet signs with personal_sign to answer a challenge.
func AuthMessage(nonce string) string {
	return fmt.Sprintf("%s\nNonce: %s", authApp, nonce)
}

// AuthTypedData is the EIP-712 payload a wallet signs to answer a challenge.
func AuthTypedData(nonce string, chainID int64, version string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			typedDataPrimary: {
				{Name: "app", Type: "string"},
				{Name: "nonce", Type: "string"},
			},
		},
		PrimaryType: typedDataPrimary,
		Domain: apitypes.TypedDataDomain{
			Name:    typedDataDomain,
			Version: version,
			ChainId: math.NewHexOrDecimal256(chainID),
		},
		Message: apitypes.TypedDataMessage{
			"app":   authApp,
			"nonce": nonce,
		},
	}
}

type NonceChallenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Auth interface {
	IssueNonce(ctx context.Context, wallet string) (*NonceChallenge, error)
	Authenticate(ctx context.Context, wallet, signature string) (*Session, error)
	// ResolveSession validates a token and returns the identity it currently belongs to.
	ResolveSession(ctx context.Context, token string) (*db.Identity, error)
}

type AuthService struct {
	dao      db.VeriVidDao
	sessions *SessionIssuer
	cfg      *config.AuthConfig
	now      func() time.Time
	newNonce func() (string, error)
}

func NewAuthService(dao db.VeriVidDao, sessions *SessionIssuer, cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		dao:      dao,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		newNonce: func() (string, error) { return util.RandomHex(nonceBytes) },
	}
}

func (s *AuthService) IssueNonce(ctx context.Context, wallet string) (*NonceChallenge, error) {
	wallet, err := util.NormalizeWallet(wallet)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	_, err = s.dao.CreateIdentityIfAbsent(ctx, &db.Identity{Id: uuid.NewString(), Wallet: wallet})
	if err != nil {
		logging.Logger.Errorf("failed to create identity, wallet=%s, err=%s", wallet, err.Error())
		return nil, err
	}
	nonce, err := s.newNonce()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.cfg.NonceTTL())
	if err = s.dao.UpsertChallenge(ctx, wallet, nonce, expiresAt); err != nil {
		logging.Logger.Errorf("failed to save challenge, wallet=%s, err=%s", wallet, err.Error())
		return nil, err
	}
	return &NonceChallenge{
		Nonce:     nonce,
		Message:   AuthMessage(nonce),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) Authenticate(ctx context.Context, wallet, signature string) (*Session, error) {
	session, err := s.authenticate(ctx, wallet, signature)
	if err != nil {
		metrics.AuthAttemptsCounter.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, err
	}
	metrics.AuthAttemptsCounter.WithLabelValues(metrics.ResultSuccess).Inc()
	return session, nil
}

func (s *AuthService) authenticate(ctx context.Context, wallet, signature string) (*Session, error) {
	wallet, err := util.NormalizeWallet(wallet)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	sig, err := decodeSignature(signature)
	if err != nil {
		return nil, ErrMalformedSignature.Enrich(err.Error())
	}
	now := s.now()
	challenge, err := s.dao.GetChallenge(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if challenge == nil || !challenge.Pending(now) {
		return nil, ErrNoPendingNonce
	}

	digest, err := s.challengeDigest(challenge.Nonce)
	if err != nil {
		return nil, err
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return nil, ErrMalformedSignature.Enrich(err.Error())
	}
	rotated, err := s.newNonce()
	if err != nil {
		return nil, err
	}
	recovered := strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())
	if recovered != wallet {
		// a wrong answer burns the challenge
		if _, err = s.dao.ConsumeChallenge(ctx, wallet, challenge.Nonce, rotated, now); err != nil {
			logging.Logger.Errorf("failed to consume challenge, wallet=%s, err=%s", wallet, err.Error())
		}
		return nil, ErrSignatureMismatch
	}

	consumed, err := s.dao.ConsumeChallenge(ctx, wallet, challenge.Nonce, rotated, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrNoPendingNonce
	}

	identity, err := s.dao.GetIdentityByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		identity, err = s.dao.CreateIdentityIfAbsent(ctx, &db.Identity{Id: uuid.NewString(), Wallet: wallet})
		if err != nil {
			return nil, err
		}
	}
	return s.sessions.Issue(identity)
}

func (s *AuthService) challengeDigest(nonce string) ([]byte, error) {
	if s.cfg.SignatureScheme == config.SignatureSchemeEIP712 {
		digest, _, err := apitypes.TypedDataAndHash(AuthTypedData(nonce, s.cfg.TypedDataChainID, s.cfg.TypedDataDomainVer))
		return digest, err
	}
	return accounts.TextHash([]byte(AuthMessage(nonce))), nil
}

// ParseSession validates the token signature and expiry without touching the repository.
func (s *AuthService) ParseSession(token string) (*SessionClaims, error) {
	return s.sessions.Parse(token)
}

func (s *AuthService) ResolveSession(ctx context.Context, token string) (*db.Identity, error) {
	claims, err := s.ParseSession(token)
	if err != nil {
		return nil, err
	}
	identity, err := s.dao.GetIdentityByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	// the wallet was rebound by recovery after the token was minted
	if identity == nil || identity.Wallet != claims.Wallet {
		return nil, ErrInvalidSession
	}
	return identity, nil
}

// decodeSignature parses a 0x-prefixed 65 byte signature and normalizes v to 0 or 1.
func decodeSignature(signature string) ([]byte, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return nil, err
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature length %d", len(sig))
	}
	switch sig[crypto.RecoveryIDOffset] {
	case 27, 28:
		sig[crypto.RecoveryIDOffset] -= 27
	case 0, 1:
	default:
		return nil, fmt.Errorf("invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}
	return sig, nil
}
