package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options 数据库连接参数
type Options struct {
	URL         string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	Debug       bool
	// Models 需要自动建表/迁移的结构体指针
	Models []interface{}
}

// InitDB 初始化数据库连接。
// 支持 postgres:// 与 mysql://（兼容 SQLAlchemy 的 mysql+pymysql:// 写法）
func InitDB(opts Options) (*gorm.DB, error) {
	dialector, err := Dialector(opts.URL)
	if err != nil {
		return nil, err
	}

	// 开发环境下打印所有 SQL，方便调试
	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	// 获取底层的 sqlDB 对象，用于设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 SQL DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(orDefault(opts.MaxIdle, 10))
	sqlDB.SetMaxOpenConns(orDefault(opts.MaxOpen, 100))
	if opts.MaxLifetime <= 0 {
		opts.MaxLifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if len(opts.Models) > 0 {
		if err := db.AutoMigrate(opts.Models...); err != nil {
			return nil, fmt.Errorf("自动建表出错: %w", err)
		}
	}

	return db, nil
}

// Dialector 根据连接串选择驱动
func Dialector(rawURL string) (gorm.Dialector, error) {
	scheme, _, found := strings.Cut(rawURL, "://")
	if !found {
		return nil, fmt.Errorf("无法识别的数据库连接串")
	}

	switch base, _, _ := strings.Cut(strings.ToLower(scheme), "+"); base {
	case "postgres", "postgresql":
		return postgres.Open("postgres://" + strings.SplitN(rawURL, "://", 2)[1]), nil
	case "mysql", "mariadb":
		dsn, err := MySQLDSN(rawURL)
		if err != nil {
			return nil, err
		}
		return gormmysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", scheme)
	}
}

// MySQLDSN 将 URL 形式的连接串转换为 go-sql-driver 的 DSN
func MySQLDSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("解析 MySQL 连接串失败: %w", err)
	}

	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	cfg.Params = map[string]string{"charset": "utf8mb4"}
	for key, values := range u.Query() {
		if len(values) > 0 {
			cfg.Params[key] = values[0]
		}
	}

	return cfg.FormatDSN(), nil
}

// Ping 健康检查
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsDuplicateKey 唯一键冲突（并发创建同一会话时出现）
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
