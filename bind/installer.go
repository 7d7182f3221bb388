package bind

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jsbind-core/jsvm"
)

// Option 调整一次安装的行为。
type Option func(*installOptions)

type installOptions struct {
	logger *zap.SugaredLogger
}

// WithLogger 指定该上下文中安装与适配器日志使用的 logger。
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *installOptions) { o.logger = l }
}

// Installer 是一个类型在单个上下文中的安装结果，同时充当该类型的
// 实例工厂。同一描述符可以安装到多个上下文，各自得到独立的安装器。
type Installer struct {
	spec   *TypeSpec
	ctx    jsvm.Context
	scope  jsvm.Object // 安装时的作用域对象
	class  jsvm.Class  // 附加模式为 nil
	proto  jsvm.Object // 附加模式指向目标的原型（或目标本身）
	ctor   jsvm.Object // 仅 InstallGlobal 非 nil
	target jsvm.Object // 仅 InstallAttach 非 nil

	ctorEntry jsvm.NativeFunc
	unpin     func()
	logger    *zap.SugaredLogger
}

// Install 按描述符把类型安装进上下文。scope 为 nil 时使用全局对象。
// 同一上下文中同名类型只能安装一次；任一步骤失败时安装被完整回滚，
// 不留下可观察的痕迹。
func Install(ctx jsvm.Context, scope jsvm.Object, spec *TypeSpec, opts ...Option) (*Installer, error) {
	if ctx == nil {
		return nil, &Error{Kind: ErrInvalidSpec, Message: "上下文不能为空"}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	var o installOptions
	for _, opt := range opts {
		opt(&o)
	}
	if scope == nil {
		scope = ctx.Global()
	}

	cb := bindingsFor(ctx, true)
	if o.logger != nil {
		cb.setLogger(o.logger)
	}
	if cb.lookup(spec.Name) != nil {
		return nil, &Error{
			Kind:    ErrDuplicateInstall,
			Type:    spec.Name,
			Message: fmt.Sprintf("类型 %s 已在该上下文中安装", spec.Name),
		}
	}

	ins := &Installer{spec: spec, ctx: ctx, scope: scope, logger: cb.logger}
	var installed *Installer
	var err error
	if spec.Mode == InstallAttach {
		installed, err = installAttach(ctx, scope, spec, ins, cb)
	} else {
		installed, err = installClass(ctx, scope, spec, ins, cb)
	}
	if err != nil {
		cb.releaseIfEmpty()
		return nil, err
	}
	return installed, nil
}

// installClass 处理 InstallGlobal 与 InstallPrivate 两种类模式。
func installClass(ctx jsvm.Context, scope jsvm.Object, spec *TypeSpec, ins *Installer, cb *contextBindings) (*Installer, error) {
	fail := func(err error) (*Installer, error) {
		if ins.ctor != nil {
			_ = scope.Delete(spec.Name)
		}
		// 私有模式的自由函数直接挂在作用域上，回滚时逐个摘除。
		if spec.Mode == InstallPrivate {
			for _, f := range spec.Funcs {
				_ = scope.Delete(f.Name)
			}
		}
		if ins.unpin != nil {
			ins.unpin()
		}
		return nil, err
	}

	var baseProto jsvm.Object
	if spec.Base != "" {
		base := cb.lookup(spec.Base)
		if base == nil {
			return nil, &Error{
				Kind:    ErrInvalidSpec,
				Type:    spec.Name,
				Message: fmt.Sprintf("类型 %s: 基类型 %s 尚未安装", spec.Name, spec.Base),
			}
		}
		baseProto = base.proto
	}

	ins.ctorEntry = AdaptConstrained(spec.Name+" constructor", true, []*TypeSpec{spec}, constructBody(spec))
	def := jsvm.ClassDef{
		Name:        spec.Name,
		HasPrivate:  spec.Flags.Has(ClassHasPrivate),
		AddProperty: spec.AddProperty,
		GetProperty: spec.GetProperty,
		SetProperty: spec.SetProperty,
		DelProperty: spec.DelProperty,
		Enumerate:   spec.Enumerate,
		Resolve:     spec.Resolve,
		Convert:     spec.Convert,
		HasInstance: spec.HasInstance,
		Construct:   ins.ctorEntry,
		Finalize:    spec.Finalize,
	}
	if spec.Call != nil {
		def.Call = Adapt(spec.Name, spec.Call)
	}

	class, err := ctx.DefineClass(def)
	if err != nil {
		return nil, errors.Wrapf(err, "定义类 %s 失败", spec.Name)
	}
	ins.class = class

	proto, err := ctx.NewObject(class, baseProto)
	if err != nil {
		return nil, errors.Wrapf(err, "创建 %s 原型失败", spec.Name)
	}
	ins.proto = proto
	unpin, err := ctx.Pin(proto)
	if err != nil {
		return nil, errors.Wrapf(err, "固定 %s 原型失败", spec.Name)
	}
	ins.unpin = unpin

	for _, m := range spec.Methods {
		entry := AdaptConstrained(spec.Name+"."+m.Name, true, []*TypeSpec{spec}, m.Fn)
		fnVal, err := ctx.NewFunction(m.Name, entry)
		if err != nil {
			return fail(errors.Wrapf(err, "创建方法 %s.%s 失败", spec.Name, m.Name))
		}
		if err := proto.Set(m.Name, fnVal); err != nil {
			return fail(errors.Wrapf(err, "绑定方法 %s.%s 失败", spec.Name, m.Name))
		}
	}

	switch spec.Mode {
	case InstallGlobal:
		ctor, err := ctx.NewConstructor(class, proto, spec.Name, nil)
		if err != nil {
			return fail(errors.Wrapf(err, "创建 %s 构造函数失败", spec.Name))
		}
		ins.ctor = ctor
		if err := bindFuncs(ctx, spec, ctor); err != nil {
			return fail(err)
		}
		if err := scope.Set(spec.Name, ctor.Value()); err != nil {
			ins.ctor = nil
			return fail(errors.Wrapf(err, "注册 %s 构造函数失败", spec.Name))
		}
	case InstallPrivate:
		if err := bindFuncs(ctx, spec, scope); err != nil {
			return fail(err)
		}
	}

	cb.record(ins)
	if spec.PostInstall != nil {
		if err := spec.PostInstall(ctx, ins); err != nil {
			cb.remove(ins)
			return fail(errors.Wrapf(err, "类型 %s 的 PostInstall 失败", spec.Name))
		}
	}
	ins.logger.Infof("类型 %s 已安装: mode=%s methods=%d funcs=%d",
		spec.Name, spec.Mode, len(spec.Methods), len(spec.Funcs))
	return ins, nil
}

// installAttach 把方法与自由函数挂到作用域中已存在的目标上。
// 方法挂到目标的 prototype 对象，目标没有 prototype 时挂到目标
// 本身；自由函数总是挂到目标本身。
func installAttach(ctx jsvm.Context, scope jsvm.Object, spec *TypeSpec, ins *Installer, cb *contextBindings) (*Installer, error) {
	tv, err := scope.Get(spec.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "查找附加目标 %s 失败", spec.Name)
	}
	target, ok := tv.Object()
	if !ok {
		return nil, &Error{
			Kind:    ErrInvalidSpec,
			Type:    spec.Name,
			Message: fmt.Sprintf("附加目标 %s 不存在或不是对象", spec.Name),
		}
	}
	ins.target = target

	host := target
	if pv, err := target.Get("prototype"); err == nil {
		if po, ok := pv.Object(); ok {
			host = po
		}
	}
	ins.proto = host

	undo := func(err error) (*Installer, error) {
		for _, m := range spec.Methods {
			_ = host.Delete(m.Name)
		}
		for _, f := range spec.Funcs {
			_ = target.Delete(f.Name)
		}
		return nil, err
	}

	for _, m := range spec.Methods {
		entry := AdaptConstrained(spec.Name+"."+m.Name, false, []*TypeSpec{spec}, m.Fn)
		fnVal, err := ctx.NewFunction(m.Name, entry)
		if err != nil {
			return undo(errors.Wrapf(err, "创建方法 %s.%s 失败", spec.Name, m.Name))
		}
		if err := host.Set(m.Name, fnVal); err != nil {
			return undo(errors.Wrapf(err, "绑定方法 %s.%s 失败", spec.Name, m.Name))
		}
	}
	if err := bindFuncs(ctx, spec, target); err != nil {
		return undo(err)
	}

	cb.record(ins)
	if spec.PostInstall != nil {
		if err := spec.PostInstall(ctx, ins); err != nil {
			cb.remove(ins)
			return undo(errors.Wrapf(err, "类型 %s 的 PostInstall 失败", spec.Name))
		}
	}
	ins.logger.Infof("类型 %s 已附加到现有目标: methods=%d funcs=%d",
		spec.Name, len(spec.Methods), len(spec.Funcs))
	return ins, nil
}

func bindFuncs(ctx jsvm.Context, spec *TypeSpec, host jsvm.Object) error {
	for _, f := range spec.Funcs {
		fnVal, err := ctx.NewFunction(f.Name, Adapt(spec.Name+"."+f.Name, f.Fn))
		if err != nil {
			return errors.Wrapf(err, "创建函数 %s.%s 失败", spec.Name, f.Name)
		}
		if err := host.Set(f.Name, fnVal); err != nil {
			return errors.Wrapf(err, "绑定函数 %s.%s 失败", spec.Name, f.Name)
		}
	}
	return nil
}

// constructBody 把描述符的构造钩子包成统一的构造体。
// 描述符未声明构造钩子时，构造产生空实例。
func constructBody(spec *TypeSpec) Method {
	return func(ctx jsvm.Context, recv Receiver, call jsvm.Call) (jsvm.Value, error) {
		if spec.Construct == nil {
			return recv.Object.Value(), nil
		}
		return spec.Construct(ctx, recv, call)
	}
}

// NewObject 创建一个空实例：类与原型已绑定、私有槽未占用、
// 不执行构造钩子。
func (ins *Installer) NewObject() (jsvm.Object, error) {
	if ins.class == nil {
		return nil, &Error{
			Kind:    ErrInvalidSpec,
			Type:    ins.spec.Name,
			Message: fmt.Sprintf("附加模式类型 %s 不能创建实例", ins.spec.Name),
		}
	}
	return ins.ctx.NewObject(ins.class, ins.proto)
}

// NewInstance 创建实例并以其为接收者执行构造钩子。钩子失败时实例
// 被立即释放，绝不返回半构造对象，错误归类为 ConstructionFailed。
func (ins *Installer) NewInstance(args ...jsvm.Value) (jsvm.Object, error) {
	obj, err := ins.NewObject()
	if err != nil {
		return nil, err
	}
	ret, err := ins.ctorEntry(ins.ctx, jsvm.NewCall(obj.Value(), args...))
	if err != nil {
		_ = ins.ctx.FreeObject(obj)
		return nil, &Error{
			Kind:    ErrConstructionFailed,
			Type:    ins.spec.Name,
			Message: fmt.Sprintf("constructing %s failed: %v", ins.spec.Name, err),
			Cause:   err,
		}
	}
	if ret != nil {
		if ro, ok := ret.Object(); ok {
			return ro, nil
		}
	}
	return obj, nil
}

// InstanceOf 判断值是否为该类型的实例，原型本身也视为实例。
// 类模式下按类句柄比较，常数时间，不读取私有槽；附加模式按
// 目标原型的链上归属判断。
func (ins *Installer) InstanceOf(v jsvm.Value) bool {
	if v == nil {
		return false
	}
	obj, ok := v.Object()
	if !ok {
		return false
	}
	return ins.owns(obj)
}

// IsPrototype 判断值是否就是该类型的原型对象，常数时间。
func (ins *Installer) IsPrototype(v jsvm.Value) bool {
	if v == nil || ins.proto == nil {
		return false
	}
	obj, ok := v.Object()
	if !ok {
		return false
	}
	return obj.SameAs(ins.proto)
}

// AttachPayload 把负载写入实例的私有槽。槽已占用时返回
// SlotAlreadyOccupied，原负载保持不变。
func (ins *Installer) AttachPayload(obj jsvm.Object, payload any) error {
	if err := ins.payloadCapable("attachPayload"); err != nil {
		return err
	}
	if err := ins.checkInstance("attachPayload", obj); err != nil {
		return err
	}
	if _, occupied := obj.Private(); occupied {
		return &Error{
			Kind:    ErrSlotAlreadyOccupied,
			Type:    ins.spec.Name,
			Op:      "attachPayload",
			Message: fmt.Sprintf("%s instance already carries a payload", ins.spec.Name),
		}
	}
	if err := obj.SetPrivate(payload); err != nil {
		return errors.Wrapf(err, "写入 %s 私有槽失败", ins.spec.Name)
	}
	return nil
}

// Payload 读取实例私有槽中的负载。未附加时返回 SlotEmpty。
func (ins *Installer) Payload(obj jsvm.Object) (any, error) {
	if err := ins.payloadCapable("getPayload"); err != nil {
		return nil, err
	}
	if obj == nil || !ins.owns(obj) {
		return nil, &Error{
			Kind:    ErrWrongType,
			Type:    ins.spec.Name,
			Op:      "getPayload",
			Message: fmt.Sprintf("getPayload expects a %s instance", ins.spec.Name),
		}
	}
	p, occupied := obj.Private()
	if !occupied {
		return nil, &Error{
			Kind:    ErrSlotEmpty,
			Type:    ins.spec.Name,
			Op:      "getPayload",
			Message: fmt.Sprintf("%s instance has no payload attached", ins.spec.Name),
		}
	}
	return p, nil
}

// Spec 返回类型描述符。返回值视为只读。
func (ins *Installer) Spec() *TypeSpec { return ins.spec }

// Context 返回安装所在的上下文。
func (ins *Installer) Context() jsvm.Context { return ins.ctx }

// Prototype 返回该类型的原型对象。
func (ins *Installer) Prototype() jsvm.Object { return ins.proto }

// Constructor 返回脚本可见的构造函数对象，仅 InstallGlobal 非 nil。
func (ins *Installer) Constructor() jsvm.Object { return ins.ctor }

// Target 返回附加模式的目标对象，其余模式为 nil。
func (ins *Installer) Target() jsvm.Object { return ins.target }

func (ins *Installer) payloadCapable(op string) error {
	if ins.class == nil || !ins.spec.Flags.Has(ClassHasPrivate) {
		return &Error{
			Kind:    ErrWrongType,
			Type:    ins.spec.Name,
			Op:      op,
			Message: fmt.Sprintf("%s instances do not carry a payload slot", ins.spec.Name),
		}
	}
	return nil
}

func (ins *Installer) checkInstance(op string, obj jsvm.Object) error {
	if obj == nil || !ins.owns(obj) {
		return &Error{
			Kind:    ErrWrongType,
			Type:    ins.spec.Name,
			Op:      op,
			Message: fmt.Sprintf("%s expects a %s instance", op, ins.spec.Name),
		}
	}
	if ins.proto != nil && obj.SameAs(ins.proto) {
		return &Error{
			Kind:    ErrCalledOnPrototype,
			Type:    ins.spec.Name,
			Op:      op,
			Message: fmt.Sprintf("%s cannot target the %s prototype", op, ins.spec.Name),
		}
	}
	return nil
}

// owns 判断对象是否归属该类型。类模式按类句柄比较；附加模式接受
// 目标原型本身与原型链经过它的对象。
func (ins *Installer) owns(obj jsvm.Object) bool {
	if ins.class != nil {
		return obj.Class() == ins.class
	}
	if ins.proto == nil {
		return false
	}
	if obj.SameAs(ins.proto) {
		return true
	}
	for p := obj.Prototype(); p != nil; p = p.Prototype() {
		if p.SameAs(ins.proto) {
			return true
		}
	}
	return false
}

// Uninstall 单独卸载该类型：移除注册表条目并撤销脚本侧痕迹，
// 对单个类型等价于 Teardown。已被卸载或被同名重装取代的安装器
// 上重复调用为空操作。
func (ins *Installer) Uninstall() {
	cb := bindingsFor(ins.ctx, false)
	if cb == nil || cb.bySpec[ins.spec] != ins {
		return
	}
	cb.remove(ins)
	ins.uninstall()
	cb.releaseIfEmpty()
}

// uninstall 撤销安装在脚本侧留下的痕迹：作用域条目与附加到目标
// 上的成员被移除，原型的固定被释放。存量实例不受影响，但其方法
// 调用在绑定移除后按无效 receiver 拒绝。
func (ins *Installer) uninstall() {
	switch ins.spec.Mode {
	case InstallGlobal:
		if ins.scope != nil {
			_ = ins.scope.Delete(ins.spec.Name)
		}
	case InstallPrivate:
		if ins.scope != nil {
			for _, f := range ins.spec.Funcs {
				_ = ins.scope.Delete(f.Name)
			}
		}
	case InstallAttach:
		if ins.proto != nil {
			for _, m := range ins.spec.Methods {
				_ = ins.proto.Delete(m.Name)
			}
		}
		if ins.target != nil {
			for _, f := range ins.spec.Funcs {
				_ = ins.target.Delete(f.Name)
			}
		}
	}
	if ins.unpin != nil {
		ins.unpin()
		ins.unpin = nil
	}
	ins.logger.Debugf("类型 %s 已卸载", ins.spec.Name)
}
