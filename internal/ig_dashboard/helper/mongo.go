package helper

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ig-dashboard/pkg/config"
)

// defaultDBName 未配置 dbname 时使用
const defaultDBName = "ig_dashboard"

// Stores 托管密钥使用的 Mongo 连接
type Stores struct {
	Client  *mongo.Client
	DB      *mongo.Database
	Secrets *mongo.Collection // 集合：secrets（可配置）
}

// ConnectMongo 连接并 ping；与启动时 panic 不同，这里把错误交给调用方，
// 托管存储不可用时服务仍可使用其他凭据来源
func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*Stores, error) {
	clientOpts := options.Client().ApplyURI(MongoURI(cfg.URI))
	if cfg.Username != "" {
		clientOpts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}

	cli, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err = cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	dbname := cfg.DBName
	if dbname == "" {
		dbname = defaultDBName
	}
	db := cli.Database(dbname)
	return &Stores{
		Client:  cli,
		DB:      db,
		Secrets: db.Collection(cfg.Collection),
	}, nil
}

func (s *Stores) Close(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Disconnect(ctx)
}

// MongoURI 兼容只写 host:port 的旧配置
func MongoURI(uri string) string {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return uri
	}
	return "mongodb://" + uri
}
