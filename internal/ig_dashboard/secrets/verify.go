package secrets

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/model"
)

// KeyStatus 单个凭据的验证结果
type KeyStatus string

const (
	StatusValid           KeyStatus = "Valid"
	StatusInvalid         KeyStatus = "Invalid"
	StatusConnectionError KeyStatus = "Connection Error"
	StatusNotSet          KeyStatus = "Not Set"
)

// ErrInvalidCredential Checker 在服务端明确拒绝凭据时包装返回该错误；
// 其他错误都视为连接问题
var ErrInvalidCredential = errors.New("credential rejected")

// Checker 对某个服务做一次轻量的鉴权调用
type Checker interface {
	Provider() string
	CredentialKey() string
	Check(ctx context.Context, credential string) error
}

type KeyResult struct {
	Provider string    `json:"provider"`
	Key      string    `json:"key"`
	Status   KeyStatus `json:"status"`
}

// TestKeys 依次验证每个 Checker 对应的凭据。网络失败只体现为状态值，不返回 error。
func TestKeys(ctx context.Context, log *zap.Logger, creds model.Credentials, checkers []Checker) []KeyResult {
	results := make([]KeyResult, 0, len(checkers))

	for _, c := range checkers {
		res := KeyResult{Provider: c.Provider(), Key: c.CredentialKey()}

		value, ok := creds.Get(c.CredentialKey())
		if !ok {
			res.Status = StatusNotSet
			results = append(results, res)
			continue
		}

		err := c.Check(ctx, value)
		switch {
		case err == nil:
			res.Status = StatusValid
		case errors.Is(err, ErrInvalidCredential):
			res.Status = StatusInvalid
		default:
			res.Status = StatusConnectionError
		}
		if err != nil {
			log.Warn("Credential check failed",
				zap.String("provider", res.Provider),
				zap.String("status", string(res.Status)),
				zap.Error(err),
			)
		}
		results = append(results, res)
	}

	return results
}
