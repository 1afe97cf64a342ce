package secrets

import (
	"context"

	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/model"
)

// Resolver 按固定优先级合并多个来源：对每个键取第一个非空值，
// 后面的来源只填补仍为空的键，不会覆盖已有值。
type Resolver struct {
	Log     *zap.Logger
	Sources []Source

	creds model.Credentials
}

// NewResolver sources 的顺序即优先级
func NewResolver(log *zap.Logger, sources ...Source) *Resolver {
	return &Resolver{
		Log:     log,
		Sources: sources,
		creds:   model.Credentials{},
	}
}

// Resolve 重新读取全部来源，替换当前凭据集并返回其副本
func (r *Resolver) Resolve(ctx context.Context) model.Credentials {
	merged := model.Credentials{}

	for _, src := range r.Sources {
		values, err := src.Load(ctx)
		if err != nil {
			r.Log.Debug("Credential source unavailable, skipping",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}

		filled := 0
		for _, key := range model.CredentialKeys {
			if _, ok := merged.Get(key); ok {
				continue
			}
			if v, ok := values.Get(key); ok {
				merged[key] = v
				filled++
			}
		}
		if filled > 0 {
			r.Log.Debug("Credential source applied",
				zap.String("source", src.Name()),
				zap.Int("filled", filled),
			)
		}
	}

	r.creds = merged
	r.Log.Info("Credentials resolved",
		zap.Int("configured", len(merged)),
		zap.Strings("missing", r.Missing(model.RequiredKeys)),
	)
	return r.Credentials()
}

// Credentials 当前凭据集的副本
func (r *Resolver) Credentials() model.Credentials {
	out := make(model.Credentials, len(r.creds))
	for k, v := range r.creds {
		out[k] = v
	}
	return out
}

func (r *Resolver) Get(key string) (string, bool) {
	return r.creds.Get(key)
}

// HasAll 所有 required 键都有值
func (r *Resolver) HasAll(required []string) bool {
	return len(r.Missing(required)) == 0
}

// Missing 按 required 的顺序返回缺失的键
func (r *Resolver) Missing(required []string) []string {
	missing := []string{}
	for _, key := range required {
		if _, ok := r.creds.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
