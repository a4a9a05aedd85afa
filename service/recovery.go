package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/notify"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/util"
)

const (
	recoveryTokenBytes = 32
	recoverySubject    = "VeriVid Wallet Recovery"
)

// RecoveryService rebinds an identity to a new wallet through a one-time token sent by e-mail.
type RecoveryService struct {
	dao         db.VeriVidDao
	notifier    notify.Notifier
	ttl         time.Duration
	frontendURL string
	now         func() time.Time
	newToken    func() (string, error)
}

func NewRecoveryService(dao db.VeriVidDao, notifier notify.Notifier, authCfg *config.AuthConfig, serverCfg *config.ServerConfig) *RecoveryService {
	return &RecoveryService{
		dao:         dao,
		notifier:    notifier,
		ttl:         authCfg.RecoveryTTL(),
		frontendURL: strings.TrimSuffix(serverCfg.FrontendURL, "/"),
		now:         time.Now,
		newToken:    func() (string, error) { return util.RandomHex(recoveryTokenBytes) },
	}
}

func hashRecoveryToken(token string) string {
	return util.GenerateChecksum([]byte(strings.TrimSpace(token)))
}

// RequestRecovery sends a recovery link when an identity has the e-mail. The outcome is not
// reported back, so the caller cannot probe which addresses are registered.
func (s *RecoveryService) RequestRecovery(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrMissingField.Enrich("email")
	}
	identity, err := s.dao.GetIdentityByEmail(ctx, email)
	if err != nil {
		logging.Logger.Errorf("failed to get identity by email, err=%s", err.Error())
		return nil
	}
	if identity == nil {
		return nil
	}
	token, err := s.newToken()
	if err != nil {
		logging.Logger.Errorf("failed to generate recovery token, err=%s", err.Error())
		return nil
	}
	if err = s.dao.SetRecoveryToken(ctx, identity.Id, hashRecoveryToken(token), s.now().Add(s.ttl)); err != nil {
		logging.Logger.Errorf("failed to save recovery token, identity=%s, err=%s", identity.Id, err.Error())
		return nil
	}
	body := fmt.Sprintf("A wallet recovery was requested for your VeriVid account.\n\n"+
		"Open the link below within %s to bind a new wallet:\n%s/recover?token=%s\n\n"+
		"If you did not request this, ignore this message.", s.ttl, s.frontendURL, token)
	if err = s.notifier.Notify(ctx, email, recoverySubject, body); err != nil {
		logging.Logger.Errorf("failed to send recovery mail, identity=%s, err=%s", identity.Id, err.Error())
	}
	return nil
}

// VerifyRecovery consumes the token and binds its identity to newWallet.
func (s *RecoveryService) VerifyRecovery(ctx context.Context, token, newWallet string) (*db.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingField.Enrich("token")
	}
	wallet, err := util.NormalizeWallet(newWallet)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	identity, err := s.dao.RebindWallet(ctx, hashRecoveryToken(token), wallet, s.now())
	if err != nil {
		switch {
		case errors.Is(err, db.ErrInvalidRecoveryToken):
			return nil, ErrInvalidRequest.Enrich("invalid or expired recovery token")
		case errors.Is(err, db.ErrDuplicateEntry):
			return nil, ErrWalletInUse
		}
		logging.Logger.Errorf("failed to rebind wallet, err=%s", err.Error())
		return nil, err
	}
	logging.Logger.Infof("wallet recovered, identity=%s, wallet=%s", identity.Id, identity.Wallet)
	return identity, nil
}
