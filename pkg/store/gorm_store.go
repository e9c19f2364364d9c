package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"creatorhub/pkg/credits"
	"creatorhub/pkg/domain"
)

const migrateLockID int64 = 52195219

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{}, &ChannelModel{}, &VideoIdeaModel{},
			&AssetModel{}, &ReelModel{}, &ReelAssetModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM reel_asset_models a
				WHERE NOT EXISTS (SELECT 1 FROM reel_models r WHERE r.id = a.reel_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'reel_asset_models'
					AND constraint_name = 'reel_asset_models_reel_id_fkey'
				) THEN
					ALTER TABLE reel_asset_models
					ADD CONSTRAINT reel_asset_models_reel_id_fkey
					FOREIGN KEY (reel_id) REFERENCES reel_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure reel asset foreign key: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// UpsertUser registers a user on first sign-in or refreshes profile fields.
// The credit balance is only seeded on create; it is never overwritten here.
func (s *GormStore) UpsertUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "image_url", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return domain.User{}, err
	}
	stored, ok, err := s.GetUserByID(u.ID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("user %s missing after upsert", u.ID)
	}
	return stored, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// AdjustCredits applies the delta in a single UPDATE ... RETURNING round trip.
// Concurrent calls are serialized by the row update; there is no separate
// read-check-write window here.
func (s *GormStore) AdjustCredits(userID string, delta int) (int, error) {
	var model UserModel
	res := s.db.Model(&model).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "credits"}}}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, credits.ErrUserNotFound
	}
	return model.Credits, nil
}

// CreateChannel stores a connected channel snapshot.
func (s *GormStore) CreateChannel(c domain.Channel) error {
	model := channelToModel(c)
	return s.db.Create(&model).Error
}

// GetUserChannel looks up a channel scoped to its owner.
func (s *GormStore) GetUserChannel(userID, channelID string) (domain.Channel, bool, error) {
	var model ChannelModel
	if err := s.db.First(&model, "user_id = ? AND channel_id = ?", userID, channelID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Channel{}, false, nil
		}
		return domain.Channel{}, false, err
	}
	return channelFromModel(model), true, nil
}

// ListChannelsByUser returns a user's channels, newest first.
func (s *GormStore) ListChannelsByUser(userID string) ([]domain.Channel, error) {
	var models []ChannelModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Channel, 0, len(models))
	for _, m := range models {
		res = append(res, channelFromModel(m))
	}
	return res, nil
}

// CreateIdea stores a new video idea.
func (s *GormStore) CreateIdea(idea domain.VideoIdea) error {
	model := ideaToModel(idea)
	return s.db.Create(&model).Error
}

// GetIdea retrieves a video idea.
func (s *GormStore) GetIdea(id string) (domain.VideoIdea, bool, error) {
	var model VideoIdeaModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.VideoIdea{}, false, nil
		}
		return domain.VideoIdea{}, false, err
	}
	return ideaFromModel(model), true, nil
}

// ListIdeasByChannel returns a channel's ideas, newest first.
func (s *GormStore) ListIdeasByChannel(channelID string) ([]domain.VideoIdea, error) {
	var models []VideoIdeaModel
	if err := s.db.Where("channel_id = ?", channelID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.VideoIdea, 0, len(models))
	for _, m := range models {
		res = append(res, ideaFromModel(m))
	}
	return res, nil
}

// UpdateIdea replaces the editable fields of an idea.
func (s *GormStore) UpdateIdea(idea domain.VideoIdea) error {
	return s.db.Model(&VideoIdeaModel{}).
		Where("id = ?", idea.ID).
		Updates(map[string]any{
			"title":       idea.Title,
			"description": idea.Description,
			"script":      idea.Script,
			"plan":        idea.Plan,
			"tags":        idea.Tags,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// SetIdeaTags updates only the tags column (SEO keyword persistence).
func (s *GormStore) SetIdeaTags(id, tags string) error {
	return s.db.Model(&VideoIdeaModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"tags":       tags,
			"updated_at": time.Now().UTC(),
		}).Error
}

// DeleteIdea removes a video idea.
func (s *GormStore) DeleteIdea(id string) error {
	return s.db.Delete(&VideoIdeaModel{}, "id = ?", id).Error
}

// CreateAsset records a generated asset together with the raw agent payload
// that produced its generator id.
func (s *GormStore) CreateAsset(asset domain.Asset, agentPayload []byte) error {
	model := assetToModel(asset)
	if len(agentPayload) > 0 {
		model.AgentPayload = agentPayload
	}
	return s.db.Create(&model).Error
}

// GetAssetByGeneratorID resolves an asset by its external correlation id.
func (s *GormStore) GetAssetByGeneratorID(generatorID string) (domain.Asset, bool, error) {
	var model AssetModel
	if err := s.db.First(&model, "generator_id = ?", generatorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Asset{}, false, nil
		}
		return domain.Asset{}, false, err
	}
	return assetFromModel(model), true, nil
}

// ListAssetsByChannel returns generated assets for a channel, newest first.
func (s *GormStore) ListAssetsByChannel(channelID string) ([]domain.Asset, error) {
	var models []AssetModel
	if err := s.db.Where("channel_id = ?", channelID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Asset, 0, len(models))
	for _, m := range models {
		res = append(res, assetFromModel(m))
	}
	return res, nil
}

// CompleteAsset flips an asset's status, URL, and archived object key by
// generator id.
func (s *GormStore) CompleteAsset(generatorID string, status domain.AssetStatus, url, objectKey string) error {
	res := s.db.Model(&AssetModel{}).
		Where("generator_id = ?", generatorID).
		Updates(map[string]any{
			"status":     string(status),
			"url":        url,
			"object_key": objectKey,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateReel stores a reel and its initial assets in one transaction.
func (s *GormStore) CreateReel(reel domain.Reel, assets []domain.ReelAsset) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		model := reelToModel(reel)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(assets) == 0 {
			return nil
		}
		models := make([]ReelAssetModel, 0, len(assets))
		for _, asset := range assets {
			am := reelAssetToModel(asset)
			am.ReelID = reel.ID
			models = append(models, am)
		}
		return tx.CreateInBatches(&models, 100).Error
	})
}

// ListReelsByChannel returns reels (newest first) with assets in creation
// order and the linked idea summary when present.
func (s *GormStore) ListReelsByChannel(channelID string) ([]domain.Reel, error) {
	var models []ReelModel
	if err := s.db.Where("channel_id = ?", channelID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Reel, 0, len(models))
	for _, m := range models {
		reel := reelFromModel(m)
		var assetModels []ReelAssetModel
		if err := s.db.Where("reel_id = ?", m.ID).Order("created_at ASC").Find(&assetModels).Error; err != nil {
			return nil, err
		}
		reel.Assets = make([]domain.ReelAsset, 0, len(assetModels))
		for _, am := range assetModels {
			reel.Assets = append(reel.Assets, reelAssetFromModel(am))
		}
		if m.VideoIdeaID != nil {
			var idea VideoIdeaModel
			if err := s.db.First(&idea, "id = ?", *m.VideoIdeaID).Error; err == nil {
				reel.VideoIdea = &domain.IdeaSummary{Title: idea.Title, Description: idea.Description}
			} else if err != gorm.ErrRecordNotFound {
				return nil, err
			}
		}
		res = append(res, reel)
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		ImageURL:  u.ImageURL,
		Credits:   u.Credits,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		ImageURL:  m.ImageURL,
		Credits:   m.Credits,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func channelToModel(c domain.Channel) ChannelModel {
	return ChannelModel{
		UserID:          c.UserID,
		ChannelID:       c.ChannelID,
		Title:           c.Title,
		Description:     c.Description,
		Thumbnail:       c.Thumbnail,
		SubscriberCount: c.SubscriberCount,
		VideoCount:      c.VideoCount,
		ViewCount:       c.ViewCount,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func channelFromModel(m ChannelModel) domain.Channel {
	return domain.Channel{
		UserID:          m.UserID,
		ChannelID:       m.ChannelID,
		Title:           m.Title,
		Description:     m.Description,
		Thumbnail:       m.Thumbnail,
		SubscriberCount: m.SubscriberCount,
		VideoCount:      m.VideoCount,
		ViewCount:       m.ViewCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func ideaToModel(i domain.VideoIdea) VideoIdeaModel {
	return VideoIdeaModel{
		ID:          i.ID,
		ChannelID:   i.ChannelID,
		Title:       i.Title,
		Description: i.Description,
		Script:      i.Script,
		Plan:        i.Plan,
		Tags:        i.Tags,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func ideaFromModel(m VideoIdeaModel) domain.VideoIdea {
	return domain.VideoIdea{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		Title:       m.Title,
		Description: m.Description,
		Script:      m.Script,
		Plan:        m.Plan,
		Tags:        m.Tags,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func assetToModel(a domain.Asset) AssetModel {
	return AssetModel{
		ID:          a.ID,
		ChannelID:   a.ChannelID,
		GeneratorID: a.GeneratorID,
		Status:      string(a.Status),
		URL:         a.URL,
		ObjectKey:   a.ObjectKey,
		AssetType:   string(a.AssetType),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func assetFromModel(m AssetModel) domain.Asset {
	return domain.Asset{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		GeneratorID: m.GeneratorID,
		Status:      domain.AssetStatus(m.Status),
		URL:         m.URL,
		ObjectKey:   m.ObjectKey,
		AssetType:   domain.AssetType(m.AssetType),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func reelToModel(r domain.Reel) ReelModel {
	var ideaID *string
	if r.VideoIdeaID != "" {
		value := r.VideoIdeaID
		ideaID = &value
	}
	return ReelModel{
		ID:          r.ID,
		ChannelID:   r.ChannelID,
		GeneratorID: r.GeneratorID,
		Status:      string(r.Status),
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		VideoIdeaID: ideaID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func reelFromModel(m ReelModel) domain.Reel {
	ideaID := ""
	if m.VideoIdeaID != nil {
		ideaID = *m.VideoIdeaID
	}
	return domain.Reel{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		GeneratorID: m.GeneratorID,
		Status:      domain.AssetStatus(m.Status),
		Title:       m.Title,
		Description: m.Description,
		URL:         m.URL,
		VideoIdeaID: ideaID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func reelAssetToModel(a domain.ReelAsset) ReelAssetModel {
	return ReelAssetModel{
		ID:          a.ID,
		ReelID:      a.ReelID,
		GeneratorID: a.GeneratorID,
		Status:      string(a.Status),
		URL:         a.URL,
		AssetType:   string(a.AssetType),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func reelAssetFromModel(m ReelAssetModel) domain.ReelAsset {
	return domain.ReelAsset{
		ID:          m.ID,
		ReelID:      m.ReelID,
		GeneratorID: m.GeneratorID,
		Status:      domain.AssetStatus(m.Status),
		URL:         m.URL,
		AssetType:   domain.AssetType(m.AssetType),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
