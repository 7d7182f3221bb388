package jsvm

import "go.uber.org/zap"

// BackendName 标识脚本运行时后端实现类型。
type BackendName string

const (
	BackendGoja BackendName = "goja"
	BackendMem  BackendName = "mem"
)

// Config 是创建上下文时使用的最小运行配置。
// 该结构应保持小且与具体后端无关，仅在需要时扩展字段。
type Config struct {
	Name   BackendName
	Logger *zap.SugaredLogger
}

// Context 是一个独立脚本执行环境的统一抽象。
// 单个上下文内为单线程协作模型，原生回调运行期间脚本不会并发执行；
// 多个上下文可在同一进程内并存，相互之间完全隔离。
type Context interface {
	Name() BackendName
	Global() Object

	// DefineClass 注册一个类。后端无法支持的钩子在此被拒绝，
	// 而不是静默忽略。
	DefineClass(def ClassDef) (Class, error)
	// NewObject 创建指定类与原型的对象，class 为 nil 时创建普通对象。
	// 实例的私有槽初始为空。
	NewObject(class Class, proto Object) (Object, error)
	// NewFunction 把原生函数包装为脚本可调用的函数值。
	NewFunction(name string, fn NativeFunc) (Value, error)
	// NewConstructor 创建可被 new 调用的构造函数对象。
	// 构造路径先创建 class 与 proto 对应的空实例，再以其为
	// receiver 调用 fn；fn 返回对象时以该对象为构造结果。
	// fn 为 nil 时使用 class 声明的 Construct 钩子，两者皆空则报错。
	NewConstructor(class Class, proto Object, name string, fn NativeFunc) (Object, error)

	Undefined() Value
	Null() Value
	Bool(b bool) Value
	Number(f float64) Value
	String(s string) Value

	// Pin 把对象固定为回收根，返回释放函数。释放函数可重复调用。
	Pin(obj Object) (func(), error)
	// FreeObject 主动释放一个类实例，立即执行终结流程。
	// 对同一对象重复调用为空操作。
	FreeObject(obj Object) error
	// Close 销毁上下文并终结所有仍存活的类实例。重复调用为空操作。
	Close() error
}

// Evaluator 是可执行脚本文本的后端扩展能力。
type Evaluator interface {
	Eval(code string) (Value, error)
}

// Collector 是支持显式垃圾回收的后端扩展能力。
type Collector interface {
	// Collect 回收所有从根不可达的对象，返回回收数量。
	Collect() int
}

// ScriptError 由错误类型实现，声明其在脚本侧的呈现方式。
// ScriptTypeError 返回 true 时后端以 TypeError 抛出，否则以
// 通用错误抛出。
type ScriptError interface {
	error
	ScriptTypeError() bool
}
