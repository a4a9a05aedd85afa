package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VeriVidDao is the persistence surface of the hub. Getters return (nil, nil) when no row matches.
type VeriVidDao interface {
	IdentityDB
	ChallengeDB
	AssetDB
	ProofDB
	RegistrationDB
	JobDB
	// ConfirmProof writes the proof row, marks the asset verified and the registration verified in a
	// single transaction. Writing a proof that already exists for the same asset is a no-op.
	ConfirmProof(ctx context.Context, proof *Proof, verifiedAt time.Time) (*Asset, *Proof, error)
}

type VeriVidSvcDB struct {
	db *gorm.DB
}

func NewVeriVidSvcDB(db *gorm.DB) VeriVidDao {
	return &VeriVidSvcDB{
		db,
	}
}

func AutoMigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(&Identity{}, &AuthChallenge{}, &Asset{}, &Proof{}, &ProofRegistration{}, &Job{})
}

type IdentityDB interface {
	GetIdentityByID(ctx context.Context, id string) (*Identity, error)
	GetIdentityByWallet(ctx context.Context, wallet string) (*Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	// CreateIdentityIfAbsent returns the identity bound to wallet, creating it when missing.
	CreateIdentityIfAbsent(ctx context.Context, identity *Identity) (*Identity, error)
	UpdateIdentity(ctx context.Context, id string, updates map[string]interface{}) (*Identity, error)
	SetRecoveryToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// RebindWallet moves the identity holding tokenHash and its assets to newWallet and clears the token.
	RebindWallet(ctx context.Context, tokenHash, newWallet string, now time.Time) (*Identity, error)
}

func (d *VeriVidSvcDB) GetIdentityByID(ctx context.Context, id string) (*Identity, error) {
	identity := Identity{}
	err := d.db.WithContext(ctx).Where("id = ?", id).Take(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (d *VeriVidSvcDB) GetIdentityByWallet(ctx context.Context, wallet string) (*Identity, error) {
	identity := Identity{}
	err := d.db.WithContext(ctx).Where("wallet = ?", wallet).Take(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (d *VeriVidSvcDB) GetIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	identity := Identity{}
	err := d.db.WithContext(ctx).Where("email = ?", email).Take(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (d *VeriVidSvcDB) CreateIdentityIfAbsent(ctx context.Context, identity *Identity) (*Identity, error) {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(identity).Error
	if err != nil && !IsDuplicateErr(err) {
		return nil, err
	}
	return d.GetIdentityByWallet(ctx, identity.Wallet)
}

func (d *VeriVidSvcDB) UpdateIdentity(ctx context.Context, id string, updates map[string]interface{}) (*Identity, error) {
	var identity Identity
	err := d.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if len(updates) > 0 {
			if err := dbTx.Model(&Identity{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return translateDuplicate(err)
			}
		}
		return dbTx.Where("id = ?", id).Take(&identity).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (d *VeriVidSvcDB) SetRecoveryToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return d.db.WithContext(ctx).Model(&Identity{}).Where("id = ?", id).Updates(map[string]interface{}{
		"recovery_token_hash": tokenHash,
		"recovery_expires_at": expiresAt,
	}).Error
}

func (d *VeriVidSvcDB) RebindWallet(ctx context.Context, tokenHash, newWallet string, now time.Time) (*Identity, error) {
	var identity Identity
	err := d.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		err := dbTx.Where("recovery_token_hash = ? and recovery_expires_at > ?", tokenHash, now).Take(&identity).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRecoveryToken
			}
			return err
		}
		oldWallet := identity.Wallet
		res := dbTx.Model(&Identity{}).Where("id = ? and recovery_token_hash = ?", identity.Id, tokenHash).Updates(map[string]interface{}{
			"wallet":              newWallet,
			"recovery_token_hash": "",
			"recovery_expires_at": nil,
		})
		if res.Error != nil {
			return translateDuplicate(res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrInvalidRecoveryToken
		}
		if err = dbTx.Model(&Asset{}).Where("owner_wallet = ?", oldWallet).Update("owner_wallet", newWallet).Error; err != nil {
			return err
		}
		if err = dbTx.Where("wallet = ?", oldWallet).Delete(&AuthChallenge{}).Error; err != nil {
			return err
		}
		return dbTx.Where("id = ?", identity.Id).Take(&identity).Error
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

type ChallengeDB interface {
	// UpsertChallenge replaces any prior challenge of wallet with a fresh pending one.
	UpsertChallenge(ctx context.Context, wallet, nonce string, expiresAt time.Time) error
	GetChallenge(ctx context.Context, wallet string) (*AuthChallenge, error)
	// ConsumeChallenge marks the pending challenge with nonce as consumed and rotates its nonce.
	// It reports false when another caller consumed it first or it is no longer pending.
	ConsumeChallenge(ctx context.Context, wallet, nonce, rotated string, now time.Time) (bool, error)
}

func (d *VeriVidSvcDB) UpsertChallenge(ctx context.Context, wallet, nonce string, expiresAt time.Time) error {
	challenge := AuthChallenge{
		Wallet:    wallet,
		Nonce:     nonce,
		ExpiresAt: expiresAt,
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"nonce":       nonce,
			"expires_at":  expiresAt,
			"consumed_at": nil,
			"updated_at":  time.Now(),
		}),
	}).Create(&challenge).Error
}

func (d *VeriVidSvcDB) GetChallenge(ctx context.Context, wallet string) (*AuthChallenge, error) {
	challenge := AuthChallenge{}
	err := d.db.WithContext(ctx).Where("wallet = ?", wallet).Take(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

func (d *VeriVidSvcDB) ConsumeChallenge(ctx context.Context, wallet, nonce, rotated string, now time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&AuthChallenge{}).
		Where("wallet = ? and nonce = ? and consumed_at is null and expires_at > ?", wallet, nonce, now).
		Updates(map[string]interface{}{
			"nonce":       rotated,
			"consumed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type AssetDB interface {
	// CreateAsset inserts asset; ErrDuplicateEntry means its sha256 is already registered.
	CreateAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id string) (*Asset, error)
	GetAssetBySha256(ctx context.Context, digest string) (*Asset, error)
	// FindDuplicateAsset returns another asset whose declared or actual digest equals digest.
	FindDuplicateAsset(ctx context.Context, digest, excludeID string) (*Asset, error)
	ListAssetsByOwner(ctx context.Context, owner string, verifiedOnly bool, offset, limit int) ([]*Asset, int64, error)
	UpdateAsset(ctx context.Context, id string, updates map[string]interface{}) error
	// MarkPipelineDispatched flips pipeline_dispatched and reports whether this call did it.
	MarkPipelineDispatched(ctx context.Context, id string) (bool, error)
	ClearPipelineDispatched(ctx context.Context, id string) error
	// DeleteAsset removes the asset with its jobs and registration. Proof rows are kept.
	DeleteAsset(ctx context.Context, id string) error
}

func (d *VeriVidSvcDB) CreateAsset(ctx context.Context, asset *Asset) error {
	return translateDuplicate(d.db.WithContext(ctx).Create(asset).Error)
}

func (d *VeriVidSvcDB) GetAsset(ctx context.Context, id string) (*Asset, error) {
	asset := Asset{}
	err := d.db.WithContext(ctx).Where("id = ?", id).Take(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

func (d *VeriVidSvcDB) GetAssetBySha256(ctx context.Context, digest string) (*Asset, error) {
	asset := Asset{}
	err := d.db.WithContext(ctx).Where("sha256 = ?", digest).Take(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

func (d *VeriVidSvcDB) FindDuplicateAsset(ctx context.Context, digest, excludeID string) (*Asset, error) {
	asset := Asset{}
	err := d.db.WithContext(ctx).
		Where("(sha256 = ? or actual_sha256 = ?) and id <> ?", digest, digest, excludeID).
		Order("created_at asc").Take(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

func (d *VeriVidSvcDB) ListAssetsByOwner(ctx context.Context, owner string, verifiedOnly bool, offset, limit int) ([]*Asset, int64, error) {
	assets := make([]*Asset, 0)
	var total int64
	byOwner := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("owner_wallet = ?", owner)
		if verifiedOnly {
			tx = tx.Where("verified = ?", true)
		}
		return tx
	}
	if err := d.db.WithContext(ctx).Model(&Asset{}).Scopes(byOwner).Count(&total).Error; err != nil {
		return assets, 0, err
	}
	if err := d.db.WithContext(ctx).Scopes(byOwner).Order("created_at desc").Offset(offset).Limit(limit).Find(&assets).Error; err != nil {
		return assets, 0, err
	}
	return assets, total, nil
}

func (d *VeriVidSvcDB) UpdateAsset(ctx context.Context, id string, updates map[string]interface{}) error {
	return translateDuplicate(d.db.WithContext(ctx).Model(&Asset{}).Where("id = ?", id).Updates(updates).Error)
}

func (d *VeriVidSvcDB) MarkPipelineDispatched(ctx context.Context, id string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&Asset{}).
		Where("id = ? and pipeline_dispatched = ?", id, false).
		Update("pipeline_dispatched", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *VeriVidSvcDB) ClearPipelineDispatched(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&Asset{}).Where("id = ?", id).Update("pipeline_dispatched", false).Error
}

func (d *VeriVidSvcDB) DeleteAsset(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if err := dbTx.Where("asset_id = ?", id).Delete(&Job{}).Error; err != nil {
			return err
		}
		if err := dbTx.Where("asset_id = ?", id).Delete(&ProofRegistration{}).Error; err != nil {
			return err
		}
		return dbTx.Where("id = ?", id).Delete(&Asset{}).Error
	})
}

type ProofDB interface {
	GetProofByHash(ctx context.Context, proofHash string) (*Proof, error)
	ListProofsByAsset(ctx context.Context, assetID string) ([]*Proof, error)
}

func (d *VeriVidSvcDB) GetProofByHash(ctx context.Context, proofHash string) (*Proof, error) {
	proof := Proof{}
	err := d.db.WithContext(ctx).Where("proof_hash = ?", proofHash).Take(&proof).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &proof, nil
}

func (d *VeriVidSvcDB) ListProofsByAsset(ctx context.Context, assetID string) ([]*Proof, error) {
	proofs := make([]*Proof, 0)
	if err := d.db.WithContext(ctx).Where("asset_id = ?", assetID).Order("id asc").Find(&proofs).Error; err != nil {
		return proofs, err
	}
	return proofs, nil
}

type RegistrationDB interface {
	GetRegistration(ctx context.Context, assetID string) (*ProofRegistration, error)
	// SaveRegistration inserts or replaces the registration of the asset.
	SaveRegistration(ctx context.Context, registration *ProofRegistration) error
	UpdateRegistrationState(ctx context.Context, assetID string, state RegistrationState, reason string) error
}

func (d *VeriVidSvcDB) GetRegistration(ctx context.Context, assetID string) (*ProofRegistration, error) {
	registration := ProofRegistration{}
	err := d.db.WithContext(ctx).Where("asset_id = ?", assetID).Take(&registration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &registration, nil
}

func (d *VeriVidSvcDB) SaveRegistration(ctx context.Context, registration *ProofRegistration) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"proof_hash":    registration.ProofHash,
			"metadata_uri":  registration.MetadataUri,
			"metadata":      registration.Metadata,
			"requester":     registration.Requester,
			"state":         registration.State,
			"reject_reason": registration.RejectReason,
			"updated_at":    time.Now(),
		}),
	}).Create(registration).Error
}

func (d *VeriVidSvcDB) UpdateRegistrationState(ctx context.Context, assetID string, state RegistrationState, reason string) error {
	return d.db.WithContext(ctx).Model(&ProofRegistration{}).Where("asset_id = ?", assetID).Updates(map[string]interface{}{
		"state":         state,
		"reject_reason": reason,
	}).Error
}

func (d *VeriVidSvcDB) ConfirmProof(ctx context.Context, proof *Proof, verifiedAt time.Time) (*Asset, *Proof, error) {
	var (
		asset  Asset
		stored Proof
	)
	err := d.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		err := dbTx.Where("proof_hash = ?", proof.ProofHash).Take(&stored).Error
		switch {
		case err == nil:
			if stored.AssetId != proof.AssetId {
				return ErrProofAssetConflict
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			stored = *proof
			if err = dbTx.Create(&stored).Error; err != nil {
				return translateDuplicate(err)
			}
		default:
			return err
		}
		err = dbTx.Model(&Asset{}).Where("id = ? and verified = ?", proof.AssetId, false).Updates(map[string]interface{}{
			"verified":    true,
			"verified_at": verifiedAt,
			"verified_by": stored.Signer,
		}).Error
		if err != nil {
			return err
		}
		err = dbTx.Model(&ProofRegistration{}).Where("asset_id = ?", proof.AssetId).Updates(map[string]interface{}{
			"state":         RegistrationVerified,
			"reject_reason": "",
		}).Error
		if err != nil {
			return err
		}
		return dbTx.Where("id = ?", proof.AssetId).Take(&asset).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &asset, &stored, nil
}

type JobDB interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobsByAsset(ctx context.Context, assetID string) ([]*Job, error)
	// ListDueJobs returns pending jobs whose run time has passed and processing jobs whose lease expired.
	ListDueJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error)
	// ClaimJob leases job to the caller. The claim only succeeds when the row still has the
	// status and attempt count the caller observed.
	ClaimJob(ctx context.Context, job *Job, now, leaseUntil time.Time) (bool, error)
	CompleteJob(ctx context.Context, id string, now time.Time) error
	RescheduleJob(ctx context.Context, id string, runAt time.Time, cause string) error
	FailJob(ctx context.Context, id string, cause string, now time.Time) error
	MarkJobAlerted(ctx context.Context, id string) error
	CountJobsByStatus(ctx context.Context, status JobStatus) (int64, error)
}

func (d *VeriVidSvcDB) CreateJob(ctx context.Context, job *Job) error {
	return translateDuplicate(d.db.WithContext(ctx).Create(job).Error)
}

func (d *VeriVidSvcDB) GetJob(ctx context.Context, id string) (*Job, error) {
	job := Job{}
	err := d.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (d *VeriVidSvcDB) ListJobsByAsset(ctx context.Context, assetID string) ([]*Job, error) {
	jobs := make([]*Job, 0)
	if err := d.db.WithContext(ctx).Where("asset_id = ?", assetID).Order("created_at asc").Find(&jobs).Error; err != nil {
		return jobs, err
	}
	return jobs, nil
}

func (d *VeriVidSvcDB) ListDueJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	jobs := make([]*Job, 0)
	err := d.db.WithContext(ctx).
		Where("(status = ? and next_run_at <= ?) or (status = ? and lease_until < ?)", JobPending, now, JobProcessing, now).
		Order("next_run_at asc").Limit(limit).Find(&jobs).Error
	if err != nil {
		return jobs, err
	}
	return jobs, nil
}

func (d *VeriVidSvcDB) ClaimJob(ctx context.Context, job *Job, now, leaseUntil time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? and status = ? and attempts = ?", job.Id, job.Status, job.Attempts).
		Updates(map[string]interface{}{
			"status":      JobProcessing,
			"attempts":    job.Attempts + 1,
			"lease_until": leaseUntil,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *VeriVidSvcDB) CompleteJob(ctx context.Context, id string, now time.Time) error {
	return d.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       JobCompleted,
		"lease_until":  nil,
		"completed_at": now,
		"last_error":   "",
	}).Error
}

func (d *VeriVidSvcDB) RescheduleJob(ctx context.Context, id string, runAt time.Time, cause string) error {
	return d.db.WithContext(ctx).Model(&Job{}).Where("id = ? and status = ?", id, JobProcessing).Updates(map[string]interface{}{
		"status":      JobPending,
		"next_run_at": runAt,
		"lease_until": nil,
		"last_error":  cause,
	}).Error
}

func (d *VeriVidSvcDB) FailJob(ctx context.Context, id string, cause string, now time.Time) error {
	return d.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       JobFailed,
		"lease_until":  nil,
		"last_error":   cause,
		"completed_at": now,
	}).Error
}

func (d *VeriVidSvcDB) MarkJobAlerted(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Update("alerted", true).Error
}

func (d *VeriVidSvcDB) CountJobsByStatus(ctx context.Context, status JobStatus) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Job{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
