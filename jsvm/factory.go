package jsvm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Constructor 是后端构造器函数签名。返回的上下文处于可用状态。
type Constructor func(cfg Config) (Context, error)

var (
	registryMu sync.RWMutex
	registry   = map[BackendName]Constructor{}
)

// Register 注册后端构造器。
func Register(name BackendName, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Registered 返回已注册的后端名称列表，按名称排序。
func Registered() []BackendName {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// New 根据配置创建脚本上下文。
func New(cfg Config) (Context, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Name]
	registryMu.RUnlock()
	if !ok || ctor == nil {
		return nil, &VMError{
			Kind:    ErrInit,
			Message: fmt.Sprintf("不支持的后端类型: %s（已注册: %v）", cfg.Name, Registered()),
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return ctor(cfg)
}
