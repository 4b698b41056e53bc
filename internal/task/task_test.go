package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qrm_chatbot_api/internal/model"
	"qrm_chatbot_api/internal/repository"
	"qrm_chatbot_api/pkg/utils"
)

// ==================== 测试辅助 ====================

func setupTaskTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.Conversation{}, &model.ConversationMessage{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func seedConversation(t *testing.T, db *gorm.DB, id string, updatedAt time.Time) {
	conv := &model.Conversation{SiteID: 1, ConversationID: id}
	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("创建会话失败: %v", err)
	}
	msg := &model.ConversationMessage{ConversationID: id, Role: model.RoleUser, Content: "hi"}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("创建消息失败: %v", err)
	}
	db.Model(conv).UpdateColumn("updated_at", updatedAt)
}

type countingCleaner struct {
	calls int
	idle  time.Duration
}

func (c *countingCleaner) Cleanup(idle time.Duration) int {
	c.calls++
	c.idle = idle
	return 3
}

// ==================== RetentionTask ====================

func TestRetentionTask_Run(t *testing.T) {
	db := setupTaskTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedConversation(t, db, "qrm_old", now.AddDate(0, 0, -100))
	seedConversation(t, db, "qrm_new", now.AddDate(0, 0, -5))

	task := NewRetentionTask(repository.NewConversationRepository(db), 90, zap.NewNop())
	task.now = func() time.Time { return now }

	deleted, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	var convs, msgs int64
	db.Model(&model.Conversation{}).Count(&convs)
	db.Model(&model.ConversationMessage{}).Where("conversation_id = ?", "qrm_old").Count(&msgs)
	if convs != 1 || msgs != 0 {
		t.Errorf("剩余会话 = %d, 过期消息 = %d", convs, msgs)
	}
}

func TestRetentionTask_Disabled(t *testing.T) {
	task := NewRetentionTask(nil, 0, zap.NewNop())
	if _, err := task.Run(context.Background()); !errors.Is(err, ErrTaskDisabled) {
		t.Errorf("err = %v, want ErrTaskDisabled", err)
	}
}

// ==================== SweepTask ====================

func TestSweepTask_Run(t *testing.T) {
	cache := utils.NewCache[string, int](time.Nanosecond)
	cache.Set("a", 1)
	cache.Set("b", 2)
	time.Sleep(time.Millisecond)

	cleaner := &countingCleaner{}
	task := NewSweepTask(map[string]Purger{"cost": cache}, cleaner, 0, zap.NewNop())

	res := task.Run()
	if res.Caches["cost"] != 2 {
		t.Errorf("purged = %d, want 2", res.Caches["cost"])
	}
	if res.Clients != 3 || cleaner.idle != 10*time.Minute {
		t.Errorf("clients = %d, idle = %v", res.Clients, cleaner.idle)
	}
}

// ==================== TaskManager ====================

func TestTaskManager(t *testing.T) {
	db := setupTaskTestDB(t)
	cleaner := &countingCleaner{}

	tm, err := NewTaskManager(&TaskManagerDeps{
		ConvRepo: repository.NewConversationRepository(db),
		Limiter:  cleaner,
	}, nil)
	if err != nil {
		t.Fatalf("NewTaskManager() error = %v", err)
	}

	status := tm.Status()
	if !status["retention"] || !status["sweep"] {
		t.Errorf("status = %v", status)
	}

	if _, err := tm.TriggerRetention(context.Background()); err != nil {
		t.Errorf("TriggerRetention() error = %v", err)
	}
	if _, err := tm.TriggerSweep(); err != nil || cleaner.calls != 1 {
		t.Errorf("TriggerSweep() err = %v, calls = %d", err, cleaner.calls)
	}

	tm.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tm.Stop(ctx)
}

func TestTaskManager_DisabledAndBadCron(t *testing.T) {
	tm, err := NewTaskManager(&TaskManagerDeps{}, &TaskManagerConfig{})
	if err != nil {
		t.Fatalf("NewTaskManager() error = %v", err)
	}
	if _, err := tm.TriggerRetention(context.Background()); !errors.Is(err, ErrTaskDisabled) {
		t.Errorf("err = %v, want ErrTaskDisabled", err)
	}
	if _, err := tm.TriggerSweep(); !errors.Is(err, ErrTaskDisabled) {
		t.Errorf("err = %v, want ErrTaskDisabled", err)
	}

	cfg := DefaultConfig()
	cfg.SweepSpec = "every now and then"
	if _, err := NewTaskManager(&TaskManagerDeps{}, cfg); err == nil {
		t.Error("非法 cron 表达式应返回错误")
	}
}
