package jsvm

// ConvertHint 标识对象转换为原始值时的期望类别。
type ConvertHint int

const (
	HintDefault ConvertHint = iota
	HintNumber
	HintString
)

// 类钩子签名与具体后端无关。obj 为钩子所属类的对象，
// 钩子返回非 nil 错误时按 NativeFunc 的约定抛出。
type (
	// AddPropertyHook 在新属性定义成功后调用，返回错误则撤销定义。
	AddPropertyHook func(ctx Context, obj Object, name string, v Value) error
	// GetPropertyHook 在属性查找完成后调用，返回值替代查找结果。
	// found 为常规查找的结果，未命中时为 undefined。
	GetPropertyHook func(ctx Context, obj Object, name string, found Value) (Value, error)
	// SetPropertyHook 在属性写入前调用，返回实际写入的值。
	SetPropertyHook func(ctx Context, obj Object, name string, v Value) (Value, error)
	// DelPropertyHook 在属性删除前调用，返回 false 表示保留该属性。
	DelPropertyHook func(ctx Context, obj Object, name string) (bool, error)
	// EnumerateHook 返回参与枚举的额外属性名。
	EnumerateHook func(ctx Context, obj Object) ([]string, error)
	// ResolveHook 在属性未命中时调用，可以惰性定义该属性。
	// 返回 true 表示属性已就地定义，查找将重试一次。
	ResolveHook func(ctx Context, obj Object, name string) (bool, error)
	// ConvertHook 在对象转换为原始值时调用。
	ConvertHook func(ctx Context, obj Object, hint ConvertHint) (Value, error)
	// HasInstanceHook 自定义 instanceof 判定，ctor 为类的构造函数对象。
	HasInstanceHook func(ctx Context, ctor Object, target Value) (bool, error)
	// FinalizeHook 在对象回收时调用，payload 为私有槽中的负载。
	// 仅在槽位已占用时调用，空槽对象的回收不触发该钩子。
	FinalizeHook func(payload any)
)

// ClassDef 描述一次类注册的名称、能力与钩子集合。
// 钩子字段均可为 nil，nil 表示后端默认行为而非空操作覆盖。
type ClassDef struct {
	Name string
	// HasPrivate 声明实例携带一个私有槽。
	HasPrivate bool

	AddProperty AddPropertyHook
	GetProperty GetPropertyHook
	SetProperty SetPropertyHook
	DelProperty DelPropertyHook
	Enumerate   EnumerateHook
	Resolve     ResolveHook
	Convert     ConvertHook
	// Call 使该类实例可被当作函数调用。
	Call NativeFunc
	// Construct 为构造路径回调，call.This 为预创建的空实例。
	Construct   NativeFunc
	HasInstance HasInstanceHook
	Finalize    FinalizeHook
}

// Class 是后端类注册记录的不透明句柄。
// 同一次 DefineClass 返回的句柄在上下文内保持同一身份。
type Class interface {
	ClassName() string
}
