package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// RepositoryTestSuite 仓储测试套件
type RepositoryTestSuite struct {
	suite.Suite
	db      *gorm.DB
	manager *Manager
	ctx     context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db = SetupTestDB()
	s.manager = NewManager(s.db)
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	CleanupTestDB(s.db)
}

func (s *RepositoryTestSuite) createPlayer(id string) *models.Player {
	p := &models.Player{
		PlayerID:     id,
		Level:        1,
		ClickValue:   1,
		LastUpdateAt: time.Now(),
	}
	s.Require().NoError(s.manager.Player().Create(s.ctx, p))
	return p
}

// 测试创建和查询玩家
func (s *RepositoryTestSuite) TestPlayerCreateAndFind() {
	s.createPlayer("alice")

	found, err := s.manager.Player().FindByPlayerID(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", found.PlayerID)
	s.Equal(1, found.Level)
	s.Equal(float64(1), found.ClickValue)

	exists, err := s.manager.Player().Exists(s.ctx, "alice")
	s.NoError(err)
	s.True(exists)

	exists, err = s.manager.Player().Exists(s.ctx, "bob")
	s.NoError(err)
	s.False(exists)

	count, err := s.manager.Player().Count(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), count)
}

// 测试玩家不存在
func (s *RepositoryTestSuite) TestPlayerNotFound() {
	_, err := s.manager.Player().FindByPlayerID(s.ctx, "ghost")
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))

	err = s.manager.Player().UpdateState(s.ctx, &models.Player{PlayerID: "ghost"})
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))
}

// 测试重复创建
func (s *RepositoryTestSuite) TestPlayerDuplicate() {
	s.createPlayer("alice")

	err := s.manager.Player().Create(s.ctx, &models.Player{PlayerID: "alice", Level: 1, ClickValue: 1})
	s.True(apperrors.Is(err, apperrors.ErrDatabaseInsert))
}

// 测试更新玩家数值
func (s *RepositoryTestSuite) TestPlayerUpdateState() {
	p := s.createPlayer("alice")
	p.Score = 123.5
	p.PerSecond = 2.6
	p.Level = 3
	p.ClickValue = 4
	p.ClickCount = 77

	s.Require().NoError(s.manager.Player().UpdateState(s.ctx, p))

	found, err := s.manager.Player().FindByPlayerID(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(123.5, found.Score)
	s.InDelta(2.6, found.PerSecond, 1e-9)
	s.Equal(3, found.Level)
	s.Equal(float64(4), found.ClickValue)
	s.Equal(int64(77), found.ClickCount)
}

// 测试升级数量写入
func (s *RepositoryTestSuite) TestUpgradeOwnershipUpsert() {
	repo := s.manager.UpgradeOwnership()

	s.Require().NoError(repo.Upsert(s.ctx, "alice", "basicTapper", 1))
	s.Require().NoError(repo.Upsert(s.ctx, "alice", "doubleClick", 2))
	s.Require().NoError(repo.Upsert(s.ctx, "alice", "basicTapper", 3))
	s.Require().NoError(repo.Upsert(s.ctx, "bob", "basicTapper", 9))

	list, err := repo.ListByPlayer(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("basicTapper", list[0].UpgradeID)
	s.Equal(3, list[0].Count)
	s.Equal("doubleClick", list[1].UpgradeID)
	s.Equal(2, list[1].Count)
}

// 测试成就状态不会回退
func (s *RepositoryTestSuite) TestAchievementUpsertMonotonic() {
	repo := s.manager.Achievement()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(repo.Upsert(s.ctx, &models.AchievementRecord{
		PlayerID: "alice", AchievementID: "first-click", Unlocked: true, UnlockedAt: &at,
	}))
	s.Require().NoError(repo.Upsert(s.ctx, &models.AchievementRecord{
		PlayerID: "alice", AchievementID: "first-click", Unlocked: false,
	}))

	list, err := repo.ListByPlayer(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.True(list[0].Unlocked)
	s.Require().NotNil(list[0].UnlockedAt)
	s.True(at.Equal(*list[0].UnlockedAt))

	count, err := repo.CountUnlocked(s.ctx, "first-click")
	s.NoError(err)
	s.Equal(int64(1), count)
}

// 测试事务回滚
func (s *RepositoryTestSuite) TestWithTransactionRollback() {
	boom := errors.New("boom")

	err := s.manager.WithTransaction(s.ctx, func(tx *Manager) error {
		s.Require().NoError(tx.Player().Create(s.ctx, &models.Player{PlayerID: "carol", Level: 1, ClickValue: 1}))
		s.Require().NoError(tx.UpgradeOwnership().Upsert(s.ctx, "carol", "basicTapper", 1))
		return boom
	})
	s.True(apperrors.Is(err, apperrors.ErrTransaction))
	s.ErrorIs(err, boom)

	exists, err := s.manager.Player().Exists(s.ctx, "carol")
	s.NoError(err)
	s.False(exists)

	list, err := s.manager.UpgradeOwnership().ListByPlayer(s.ctx, "carol")
	s.NoError(err)
	s.Empty(list)
}

// 测试事务保留业务错误码
func (s *RepositoryTestSuite) TestWithTransactionKeepsAppError() {
	err := s.manager.WithTransaction(s.ctx, func(tx *Manager) error {
		_, err := tx.Player().FindByPlayerID(s.ctx, "ghost")
		return err
	})
	s.True(apperrors.Is(err, apperrors.ErrPlayerNotFound))
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

// 测试MySQL的成就写入使用条件赋值
func TestAchievementUpsertClauseMySQL(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "tap:tap@tcp(127.0.0.1:3306)/tap_game?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Clauses(achievementUpsertClause("mysql")).
			Create(&models.AchievementRecord{PlayerID: "alice", AchievementID: "first-click"})
	})

	i := strings.Index(sql, "ON DUPLICATE KEY UPDATE")
	require.GreaterOrEqual(t, i, 0, sql)
	update := sql[i:]
	assert.Contains(t, update, "IF(unlocked, unlocked_at, VALUES(unlocked_at))")
	assert.Contains(t, update, "unlocked OR VALUES(unlocked)")
	assert.NotContains(t, update, "WHERE")
	assert.Less(t, strings.Index(update, "IF(unlocked"), strings.Index(update, "unlocked OR VALUES"))
}

func TestAchievementUpsertClauseGuard(t *testing.T) {
	c := achievementUpsertClause("sqlite")
	assert.Len(t, c.Where.Exprs, 1)
	assert.Len(t, c.DoUpdates, 3)
}
