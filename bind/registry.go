package bind

import (
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"jsbind-core/jsvm"
)

// contextBindings 保存单个上下文中的全部安装记录。
// 记录本身只被所属上下文的协程访问，仅外层 bindings 表需要加锁。
type contextBindings struct {
	ctx    jsvm.Context
	byName map[string]*Installer
	bySpec map[*TypeSpec]*Installer
	order  []*Installer
	logger *zap.SugaredLogger
}

var (
	bindingsMu sync.RWMutex
	bindings   = map[jsvm.Context]*contextBindings{}
)

func bindingsFor(ctx jsvm.Context, create bool) *contextBindings {
	bindingsMu.RLock()
	cb := bindings[ctx]
	bindingsMu.RUnlock()
	if cb != nil || !create {
		return cb
	}
	bindingsMu.Lock()
	defer bindingsMu.Unlock()
	if cb = bindings[ctx]; cb == nil {
		cb = &contextBindings{
			ctx:    ctx,
			byName: map[string]*Installer{},
			bySpec: map[*TypeSpec]*Installer{},
			logger: zap.NewNop().Sugar(),
		}
		bindings[ctx] = cb
	}
	return cb
}

func (cb *contextBindings) lookup(name string) *Installer { return cb.byName[name] }

func (cb *contextBindings) record(ins *Installer) {
	cb.byName[ins.spec.Name] = ins
	cb.bySpec[ins.spec] = ins
	cb.order = append(cb.order, ins)
}

func (cb *contextBindings) remove(ins *Installer) {
	delete(cb.byName, ins.spec.Name)
	delete(cb.bySpec, ins.spec)
	cb.order = lo.Without(cb.order, ins)
}

func (cb *contextBindings) setLogger(l *zap.SugaredLogger) {
	if l != nil {
		cb.logger = l
	}
}

// releaseIfEmpty 移除不再持有任何安装记录的上下文条目。
// 失败的首次安装与最后一次卸载之后，注册表不保留对上下文的引用。
func (cb *contextBindings) releaseIfEmpty() {
	if len(cb.byName) > 0 {
		return
	}
	bindingsMu.Lock()
	if bindings[cb.ctx] == cb {
		delete(bindings, cb.ctx)
	}
	bindingsMu.Unlock()
}

// installerFor 按描述符身份取当前上下文中的安装器，未安装返回 nil。
func installerFor(ctx jsvm.Context, spec *TypeSpec) *Installer {
	cb := bindingsFor(ctx, false)
	if cb == nil {
		return nil
	}
	return cb.bySpec[spec]
}

// InstallerOf 按类型名取上下文中的安装器。
func InstallerOf(ctx jsvm.Context, name string) (*Installer, bool) {
	cb := bindingsFor(ctx, false)
	if cb == nil {
		return nil, false
	}
	ins := cb.byName[name]
	return ins, ins != nil
}

// Installed 返回上下文中已安装类型名的有序列表。
func Installed(ctx jsvm.Context) []string {
	cb := bindingsFor(ctx, false)
	if cb == nil {
		return nil
	}
	names := lo.Keys(cb.byName)
	sort.Strings(names)
	return names
}

// loggerFor 返回上下文安装时指定的 logger，未指定时为空实现。
func loggerFor(ctx jsvm.Context) *zap.SugaredLogger {
	cb := bindingsFor(ctx, false)
	if cb == nil || cb.logger == nil {
		return zap.NewNop().Sugar()
	}
	return cb.logger
}

// Teardown 卸载上下文中全部已安装类型并整体移除注册表项。
// 按安装顺序的逆序释放；幂等；应在 ctx.Close 之前调用。
func Teardown(ctx jsvm.Context) {
	bindingsMu.Lock()
	cb := bindings[ctx]
	delete(bindings, ctx)
	bindingsMu.Unlock()
	if cb == nil {
		return
	}
	for i := len(cb.order) - 1; i >= 0; i-- {
		cb.order[i].uninstall()
	}
	cb.logger.Infof("上下文绑定已清理: types=%d", len(cb.order))
}
