// Package stdtypes 提供随框架发布的示例原生类型绑定。
// 这些类型只依赖描述符与适配层，不触碰任何后端实现，既可直接
// 安装使用，也可作为编写自定义类型的样板。
package stdtypes

import (
	"fmt"
	"math"
	"strconv"

	"jsbind-core/bind"
	"jsbind-core/jsvm"
)

// Int64Name 是 Int64 类型的注册名。
const Int64Name = "Int64"

// 脚本 number 可安全还原为 int64 的边界，上界为开区间。
const (
	int64FloatMin   = -9223372036854775808.0
	int64FloatLimit = 9223372036854775808.0
)

// Int64Spec 构造 Int64 类型的描述符：64 位整数的精确包装。
// 构造接受十进制字符串（精确）或整数 number；toString 精确往返，
// toNumber 在超出 2^53 后可能有精度损失。
func Int64Spec() *bind.TypeSpec {
	return &bind.TypeSpec{
		Name:  Int64Name,
		Mode:  bind.InstallGlobal,
		Flags: bind.ClassHasPrivate,
		Construct: func(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
			v, err := int64FromArg(call.Arg(0))
			if err != nil {
				return nil, err
			}
			if err := recv.Installer.AttachPayload(recv.Object, &v); err != nil {
				return nil, err
			}
			return recv.Object.Value(), nil
		},
		Methods: []bind.MethodSpec{
			{Name: "toNumber", Fn: func(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
				n, err := unboxInt64(recv.Payload())
				if err != nil {
					return nil, err
				}
				return ctx.Number(float64(n)), nil
			}},
			{Name: "toString", Fn: func(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
				n, err := unboxInt64(recv.Payload())
				if err != nil {
					return nil, err
				}
				return ctx.String(strconv.FormatInt(n, 10)), nil
			}},
		},
		Funcs: []bind.FuncSpec{
			{Name: "fromString", Fn: func(ctx jsvm.Context, call jsvm.Call) (jsvm.Value, error) {
				if call.Arg(0).Kind() != jsvm.KindString {
					return nil, &bind.Error{
						Kind:    bind.ErrNativeFailure,
						Type:    Int64Name,
						Op:      "fromString",
						Message: "Int64.fromString expects a decimal string",
					}
				}
				n, err := parseInt64(call.Arg(0).String())
				if err != nil {
					return nil, err
				}
				ins, ok := bind.InstallerOf(ctx, Int64Name)
				if !ok {
					return nil, &bind.Error{
						Kind:    bind.ErrWrongType,
						Type:    Int64Name,
						Op:      "fromString",
						Message: "Int64 is not installed in this context",
					}
				}
				obj, err := ins.NewObject()
				if err != nil {
					return nil, err
				}
				if err := ins.AttachPayload(obj, &n); err != nil {
					return nil, err
				}
				return obj.Value(), nil
			}},
		},
	}
}

// InstallInt64 把 Int64 安装到上下文。scope 为 nil 时挂到全局对象。
func InstallInt64(ctx jsvm.Context, scope jsvm.Object, opts ...bind.Option) (*bind.Installer, error) {
	return bind.Install(ctx, scope, Int64Spec(), opts...)
}

// Int64Value 读取一个 Int64 实例携带的整数值。
func Int64Value(ins *bind.Installer, obj jsvm.Object) (int64, error) {
	return unboxInt64(ins.Payload(obj))
}

func int64FromArg(arg jsvm.Value) (int64, error) {
	switch {
	case jsvm.IsNullish(arg):
		return 0, nil
	case arg.Kind() == jsvm.KindString:
		return parseInt64(arg.String())
	case arg.Kind() == jsvm.KindNumber:
		f := arg.Number()
		if math.Trunc(f) != f || f < int64FloatMin || f >= int64FloatLimit {
			return 0, &bind.Error{
				Kind:    bind.ErrNativeFailure,
				Type:    Int64Name,
				Op:      "constructor",
				Message: fmt.Sprintf("Int64 constructor: number %v is not an integer in int64 range", f),
			}
		}
		return int64(f), nil
	}
	return 0, &bind.Error{
		Kind:    bind.ErrNativeFailure,
		Type:    Int64Name,
		Op:      "constructor",
		Message: "Int64 constructor expects a decimal string or a number",
	}
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &bind.Error{
			Kind:    bind.ErrNativeFailure,
			Type:    Int64Name,
			Op:      "parse",
			Message: fmt.Sprintf("Int64: invalid decimal string %q", s),
		}
	}
	return n, nil
}

func unboxInt64(p any, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	n, ok := p.(*int64)
	if !ok {
		return 0, &bind.Error{
			Kind:    bind.ErrNativeFailure,
			Type:    Int64Name,
			Message: "Int64 payload corrupted",
		}
	}
	return *n, nil
}
