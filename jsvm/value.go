package jsvm

// ValueKind 标识脚本值的基本类别。
type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
)

// Value 是后端脚本值的统一只读视图。
// 值由后端创建并持有，宿主代码通过 Context 的值工厂获取。
type Value interface {
	Kind() ValueKind
	// Bool 返回布尔值内容，仅对 KindBool 有意义。
	Bool() bool
	// Number 返回数值内容，仅对 KindNumber 有意义。
	Number() float64
	// String 返回字符串内容，其余类别返回诊断用表示。
	String() string
	// Object 当值为对象时返回其对象视图。
	Object() (Object, bool)
	// Export 导出为 Go 原生值。
	Export() any
}

// IsUndefined 判断值是否为 undefined。nil 视作 undefined。
func IsUndefined(v Value) bool {
	return v == nil || v.Kind() == KindUndefined
}

// IsNullish 判断值是否为 undefined 或 null。
func IsNullish(v Value) bool {
	return v == nil || v.Kind() == KindUndefined || v.Kind() == KindNull
}

// undefinedValue 是 jsvm 层共享的 undefined 表示。
// 后端可返回自身的 undefined，两者通过 Kind 等价。
type undefinedValue struct{}

func (undefinedValue) Kind() ValueKind        { return KindUndefined }
func (undefinedValue) Bool() bool             { return false }
func (undefinedValue) Number() float64        { return 0 }
func (undefinedValue) String() string         { return "undefined" }
func (undefinedValue) Object() (Object, bool) { return nil, false }
func (undefinedValue) Export() any            { return nil }

// Undef 是共享的 undefined 值，供无法访问 Context 的调用方使用。
var Undef Value = undefinedValue{}

// Object 是后端脚本对象的统一操作视图。
type Object interface {
	Value() Value
	Get(name string) (Value, error)
	Set(name string, v Value) error
	Delete(name string) error
	Has(name string) bool
	// Keys 返回自有可枚举属性名。
	Keys() []string
	// Prototype 返回原型对象，无原型时返回 nil。
	Prototype() Object
	// Class 返回对象所属的已注册类，普通对象返回 nil。
	Class() Class
	// Private 读取私有槽，第二个返回值表示槽位是否已占用。
	Private() (any, bool)
	// SetPrivate 写入私有槽，覆盖旧值。类未声明私有槽时返回错误。
	// 槽位占用策略由上层决定，这里只是原始读写。
	SetPrivate(p any) error
	// ClearPrivate 清空私有槽。清空未占用的槽为空操作。
	ClearPrivate() error
	// SameAs 判断两个视图是否指向同一个后端对象。
	SameAs(o Object) bool
}

// Call 是原生回调收到的调用参数视图。
type Call interface {
	This() Value
	Len() int
	// Arg 返回第 i 个实参，越界时返回 undefined。
	Arg(i int) Value
	Args() []Value
}

// NativeFunc 是可注册到后端的原生函数。
// 返回非 nil 错误时，后端将其转换为脚本可捕获的异常抛出，
// 不会中断宿主进程，也不会破坏运行时状态。
type NativeFunc func(ctx Context, call Call) (Value, error)

// callArgs 是 Call 的通用实现，供原生侧构造调用。
type callArgs struct {
	this Value
	args []Value
}

// NewCall 构造一次原生侧发起的调用视图。
func NewCall(this Value, args ...Value) Call {
	if this == nil {
		this = Undef
	}
	return &callArgs{this: this, args: args}
}

func (c *callArgs) This() Value { return c.this }
func (c *callArgs) Len() int    { return len(c.args) }

func (c *callArgs) Arg(i int) Value {
	if i < 0 || i >= len(c.args) || c.args[i] == nil {
		return Undef
	}
	return c.args[i]
}

func (c *callArgs) Args() []Value {
	out := make([]Value, len(c.args))
	for i := range c.args {
		out[i] = c.Arg(i)
	}
	return out
}
