package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stepchess/internal/model"
)

// GormStore wraps a gorm DB instance and implements Store over postgres.
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormStore creates a store from a gorm DB.
func NewGormStore(db *gorm.DB, log *zap.Logger) *GormStore {
	if db == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GormStore{db: db, log: log}
}

func (s *GormStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

func (s *GormStore) Game(ctx context.Context, id string) (*model.Game, error) {
	var row GameRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *GormStore) Balance(ctx context.Context, gameID, playerID string) (int64, error) {
	return (&gormTx{db: s.db}).Balance(ctx, gameID, playerID)
}

func (s *GormStore) LeaderboardRecord(ctx context.Context, playerID string) (model.LeaderboardRecord, error) {
	var row LeaderboardRow
	err := s.db.WithContext(ctx).First(&row, "player_id = ?", playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.LeaderboardRecord{PlayerID: playerID}, nil
	}
	if err != nil {
		return model.LeaderboardRecord{}, err
	}
	return row.toModel(), nil
}

func (s *GormStore) TopLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardRecord, error) {
	var rows []LeaderboardRow
	if err := s.db.WithContext(ctx).
		Order("wins DESC, draws DESC, losses ASC, player_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.LeaderboardRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) UnscoredCompletedGames(ctx context.Context, limit int) ([]*model.Game, error) {
	var rows []GameRow
	if err := s.db.WithContext(ctx).
		Joins("LEFT JOIN scored_games ON scored_games.game_id = games.id").
		Where("games.status = ? AND scored_games.game_id IS NULL", string(model.StatusCompleted)).
		Order("games.ended_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Game, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) GameForUpdate(ctx context.Context, id string) (*model.Game, error) {
	var row GameRow
	if err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (t *gormTx) InsertGame(ctx context.Context, g *model.Game) error {
	row := gameRowFrom(g)
	row.Version = 1
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	g.Version = row.Version
	return nil
}

func (t *gormTx) UpdateGame(ctx context.Context, g *model.Game) error {
	row := gameRowFrom(g)
	row.Version = g.Version + 1
	res := t.db.WithContext(ctx).Model(&GameRow{ID: g.ID}).Select("*").Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	g.Version = row.Version
	return nil
}

func (t *gormTx) ClaimActiveGame(ctx context.Context, playerID, gameID string) error {
	res := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ActiveGameRow{PlayerID: playerID, GameID: gameID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	current, ok, err := t.ActiveGame(ctx, playerID)
	if err != nil {
		return err
	}
	if ok && current == gameID {
		return nil
	}
	return ErrActiveGameExists
}

func (t *gormTx) ReleaseActiveGame(ctx context.Context, playerID, gameID string) error {
	return t.db.WithContext(ctx).
		Where("player_id = ? AND game_id = ?", playerID, gameID).
		Delete(&ActiveGameRow{}).Error
}

func (t *gormTx) ActiveGame(ctx context.Context, playerID string) (string, bool, error) {
	var row ActiveGameRow
	err := t.db.WithContext(ctx).First(&row, "player_id = ?", playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.GameID, true, nil
}

func (t *gormTx) Balance(ctx context.Context, gameID, playerID string) (int64, error) {
	var row StepBalanceRow
	err := t.db.WithContext(ctx).
		First(&row, "game_id = ? AND player_id = ?", gameID, playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}

func (t *gormTx) AddBalance(ctx context.Context, gameID, playerID string, delta int64) (int64, error) {
	row := StepBalanceRow{GameID: gameID, PlayerID: playerID, Balance: delta}
	err := t.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "game_id"}, {Name: "player_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"balance": gorm.Expr("step_balances.balance + ?", delta),
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "balance"}}},
		).
		Create(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}

func (t *gormTx) SpendBalance(ctx context.Context, gameID, playerID string, cost int64) (int64, error) {
	if cost <= 0 {
		return t.Balance(ctx, gameID, playerID)
	}
	var row StepBalanceRow
	res := t.db.WithContext(ctx).
		Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance"}}}).
		Where("game_id = ? AND player_id = ? AND balance >= ?", gameID, playerID, cost).
		UpdateColumn("balance", gorm.Expr("balance - ?", cost))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 1 {
		return row.Balance, nil
	}
	have, err := t.Balance(ctx, gameID, playerID)
	if err != nil {
		return 0, err
	}
	return have, ErrInsufficientBalance
}

func (t *gormTx) AddHourlyEarn(ctx context.Context, playerID string, window time.Time, delta, limit int64) (int64, error) {
	if limit > 0 && delta > limit {
		return 0, ErrHourlyCapExceeded
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "player_id"}, {Name: "window_start"}},
		DoUpdates: clause.Assignments(map[string]any{
			"earned": gorm.Expr("hourly_earns.earned + ?", delta),
		}),
	}
	if limit > 0 {
		onConflict.Where = clause.Where{Exprs: []clause.Expression{
			gorm.Expr("hourly_earns.earned + ? <= ?", delta, limit),
		}}
	}
	row := HourlyEarnRow{PlayerID: playerID, WindowStart: window, Earned: delta}
	res := t.db.WithContext(ctx).
		Clauses(onConflict, clause.Returning{Columns: []clause.Column{{Name: "earned"}}}).
		Create(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrHourlyCapExceeded
	}
	return row.Earned, nil
}

func (t *gormTx) EnqueuePlayer(ctx context.Context, e model.QueueEntry) (model.QueueEntry, error) {
	row := QueueEntryRow{ID: e.ID, PlayerID: e.PlayerID, JoinedAt: e.JoinedAt}
	if err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "player_id"}}, DoNothing: true}).
		Create(&row).Error; err != nil {
		return model.QueueEntry{}, err
	}
	var stored QueueEntryRow
	if err := t.db.WithContext(ctx).First(&stored, "player_id = ?", e.PlayerID).Error; err != nil {
		return model.QueueEntry{}, notFound(err)
	}
	return model.QueueEntry{ID: stored.ID, PlayerID: stored.PlayerID, JoinedAt: stored.JoinedAt}, nil
}

func (t *gormTx) RemoveQueueEntry(ctx context.Context, playerID string) (bool, error) {
	res := t.db.WithContext(ctx).Where("player_id = ?", playerID).Delete(&QueueEntryRow{})
	return res.RowsAffected > 0, res.Error
}

func (t *gormTx) ClaimQueueHead(ctx context.Context, n int) ([]model.QueueEntry, error) {
	var rows []QueueEntryRow
	if err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Order("joined_at ASC, id ASC").
		Limit(n).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.QueueEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.QueueEntry{ID: r.ID, PlayerID: r.PlayerID, JoinedAt: r.JoinedAt})
	}
	return out, nil
}

func (t *gormTx) PutNotification(ctx context.Context, n model.MatchNotification) error {
	row := MatchNotificationRow{PlayerID: n.PlayerID, GameID: n.GameID, CreatedAt: n.CreatedAt}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"game_id", "created_at"}),
		}).
		Create(&row).Error
}

func (t *gormTx) TakeNotification(ctx context.Context, playerID string) (model.MatchNotification, bool, error) {
	var rows []MatchNotificationRow
	if err := t.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("player_id = ?", playerID).
		Delete(&rows).Error; err != nil {
		return model.MatchNotification{}, false, err
	}
	if len(rows) == 0 {
		return model.MatchNotification{}, false, nil
	}
	r := rows[0]
	return model.MatchNotification{PlayerID: r.PlayerID, GameID: r.GameID, CreatedAt: r.CreatedAt}, true, nil
}

func (t *gormTx) MarkScored(ctx context.Context, gameID string, at time.Time) (bool, error) {
	res := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ScoredGameRow{GameID: gameID, ScoredAt: at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) IncrementLeaderboard(ctx context.Context, playerID string, d model.LeaderboardDelta) error {
	if d.Zero() {
		return nil
	}
	row := LeaderboardRow{
		PlayerID:    playerID,
		Wins:        d.Wins,
		Losses:      d.Losses,
		Draws:       d.Draws,
		StepsSpent:  d.StepsSpent,
		MovesPlayed: d.MovesPlayed,
	}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "player_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"wins":         gorm.Expr("leaderboard_records.wins + ?", d.Wins),
				"losses":       gorm.Expr("leaderboard_records.losses + ?", d.Losses),
				"draws":        gorm.Expr("leaderboard_records.draws + ?", d.Draws),
				"steps_spent":  gorm.Expr("leaderboard_records.steps_spent + ?", d.StepsSpent),
				"moves_played": gorm.Expr("leaderboard_records.moves_played + ?", d.MovesPlayed),
			}),
		}).
		Create(&row).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
