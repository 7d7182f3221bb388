// Package bind 把原生 Go 类型与函数安全地暴露给脚本运行时。
//
// 框架由四部分组成：类型描述符 TypeSpec、调用适配器 Adapt 与
// AdaptConstrained、类型安装器与实例工厂 Installer、以及按上下文
// 隔离的安装注册表。引擎通过 jsvm 契约接入，bind 不依赖具体后端。
package bind

import (
	"fmt"

	"github.com/samber/lo"

	"jsbind-core/jsvm"
)

// InstallMode 决定类型以何种方式进入脚本作用域。
type InstallMode int

const (
	// InstallGlobal 在作用域中注册脚本可见、可 new 的构造函数。
	InstallGlobal InstallMode = iota
	// InstallPrivate 定义类与原型，但不向脚本暴露构造函数，
	// 实例只能由原生侧通过 Installer 创建。
	InstallPrivate
	// InstallAttach 把方法与函数挂到作用域中已存在的目标上，
	// 不定义新类，也不触碰目标的生命周期。
	InstallAttach
)

func (m InstallMode) String() string {
	switch m {
	case InstallGlobal:
		return "global"
	case InstallPrivate:
		return "private"
	case InstallAttach:
		return "attach"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ClassFlags 是类型能力位集。
type ClassFlags uint32

const (
	// ClassHasPrivate 实例携带一个私有负载槽。
	ClassHasPrivate ClassFlags = 1 << iota
)

// Has 判断位集是否包含全部给定标志。
func (f ClassFlags) Has(flag ClassFlags) bool { return f&flag == flag }

// Func 是暴露给脚本的自由函数体。
type Func func(ctx jsvm.Context, call jsvm.Call) (jsvm.Value, error)

// Method 是实例方法体。recv 已通过接收者检查，指向匹配的实例、
// 类型描述符与安装器。
type Method func(ctx jsvm.Context, recv Receiver, call jsvm.Call) (jsvm.Value, error)

// MethodSpec 描述一个实例方法。
type MethodSpec struct {
	Name string
	Fn   Method
}

// FuncSpec 描述一个自由函数。
type FuncSpec struct {
	Name string
	Fn   Func
}

// TypeSpec 是类型描述符：名称、安装方式、方法、自由函数与钩子的
// 完整声明。描述符按约定不可变，Install 之后不得再修改其内容，
// 框架自身绝不回写。
type TypeSpec struct {
	// Name 是类型的脚本可见名，同一上下文内唯一。
	Name string
	// Mode 决定安装方式。
	Mode InstallMode
	// Flags 是类型能力位集。
	Flags ClassFlags
	// Base 可选基类型名。设置后新类型的原型链接到基类型的原型，
	// 基类型必须先于本类型安装。
	Base string

	// Methods 按声明顺序绑定到原型。
	Methods []MethodSpec
	// Funcs 按声明顺序绑定到构造函数（InstallGlobal）、作用域
	// （InstallPrivate）或附加目标（InstallAttach）。
	Funcs []FuncSpec

	// 类钩子，均可为 nil，语义见 jsvm.ClassDef。
	AddProperty jsvm.AddPropertyHook
	GetProperty jsvm.GetPropertyHook
	SetProperty jsvm.SetPropertyHook
	DelProperty jsvm.DelPropertyHook
	Enumerate   jsvm.EnumerateHook
	Resolve     jsvm.ResolveHook
	Convert     jsvm.ConvertHook
	HasInstance jsvm.HasInstanceHook

	// Call 使实例可以像函数一样被调用。
	Call Func
	// Construct 在构造时执行，接收者为预创建的空实例。
	// 为 nil 时构造产生空实例。
	Construct Method
	// Finalize 在实例回收且私有槽非空时执行一次，入参为槽中负载。
	Finalize func(payload any)
	// PostInstall 在类与原型就绪、类型注册完成后执行。
	// 返回错误会回滚整个安装。
	PostInstall func(ctx jsvm.Context, ins *Installer) error
}

// Validate 校验描述符。Install 在定义任何类之前调用它，
// 不合法的描述符不会留下任何可观察的安装痕迹。
func (s *TypeSpec) Validate() error {
	if s == nil {
		return &Error{Kind: ErrInvalidSpec, Message: "类型描述符不能为空"}
	}
	if s.Name == "" {
		return &Error{Kind: ErrInvalidSpec, Message: "类型名不能为空"}
	}
	switch s.Mode {
	case InstallGlobal, InstallPrivate, InstallAttach:
	default:
		return s.invalid("未知安装方式 %s", s.Mode)
	}
	if s.Mode == InstallAttach {
		// 附加模式不得改变既有类型的生命周期，也不定义类，
		// 这些限制必须在任何实例出现之前拒绝
		if s.Construct != nil {
			return s.invalid("附加模式不能声明构造钩子")
		}
		if s.Finalize != nil {
			return s.invalid("附加模式不能声明终结钩子")
		}
		if s.Base != "" {
			return s.invalid("附加模式不能声明基类型")
		}
		if s.Flags.Has(ClassHasPrivate) {
			return s.invalid("附加模式不能声明私有槽")
		}
		if s.hasClassHooks() {
			return s.invalid("附加模式不能声明类钩子")
		}
	}
	if s.Finalize != nil && !s.Flags.Has(ClassHasPrivate) {
		return s.invalid("终结钩子要求 ClassHasPrivate 标志")
	}
	for _, m := range s.Methods {
		if m.Name == "" {
			return s.invalid("方法名不能为空")
		}
		if m.Fn == nil {
			return s.invalid("方法 %s 缺少函数体", m.Name)
		}
	}
	for _, f := range s.Funcs {
		if f.Name == "" {
			return s.invalid("自由函数名不能为空")
		}
		if f.Fn == nil {
			return s.invalid("自由函数 %s 缺少函数体", f.Name)
		}
	}
	if dups := lo.FindDuplicates(lo.Map(s.Methods, func(m MethodSpec, _ int) string { return m.Name })); len(dups) > 0 {
		return s.invalid("方法 %s 重复声明", dups[0])
	}
	if dups := lo.FindDuplicates(lo.Map(s.Funcs, func(f FuncSpec, _ int) string { return f.Name })); len(dups) > 0 {
		return s.invalid("自由函数 %s 重复声明", dups[0])
	}
	return nil
}

func (s *TypeSpec) invalid(format string, args ...any) *Error {
	return &Error{
		Kind:    ErrInvalidSpec,
		Type:    s.Name,
		Message: fmt.Sprintf("类型 %s: %s", s.Name, fmt.Sprintf(format, args...)),
	}
}

func (s *TypeSpec) hasClassHooks() bool {
	return s.AddProperty != nil || s.GetProperty != nil || s.SetProperty != nil ||
		s.DelProperty != nil || s.Enumerate != nil || s.Resolve != nil ||
		s.Convert != nil || s.HasInstance != nil || s.Call != nil
}
