package fallback

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Warning 非致命提示，随结果返回给调用方展示
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Source, w.Message)
}

// Run 执行远程调用 op；op 为 nil（服务不可用）或返回错误时改用 def 生成的默认值。
// 错误从不向上传递，失败只体现为返回的 Warning。
func Run[T any](ctx context.Context, log *zap.Logger, source string, op func(context.Context) (T, error), def func() T) (T, *Warning) {
	if op == nil {
		return def(), nil
	}

	v, err := op(ctx)
	if err != nil {
		log.Warn("Remote call failed, using default",
			zap.String("source", source),
			zap.Error(err),
		)
		return def(), &Warning{Source: source, Message: err.Error()}
	}
	return v, nil
}
