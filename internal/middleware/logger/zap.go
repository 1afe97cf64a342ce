package logger

import (
	"go.uber.org/zap"
)

// NewLogger 创建 zap.Logger 实例
// debug 模式使用开发版 logger，否则使用生产版 JSON 输出
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	return logger.With(zap.String("service", "ig-dashboard")), nil
}
