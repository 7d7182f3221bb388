package stdtypes

import (
	"fmt"

	"github.com/google/uuid"

	"jsbind-core/bind"
	"jsbind-core/jsvm"
)

// UUIDName 是 UUID 类型的注册名。
const UUIDName = "UUID"

// UUIDSpec 构造 UUID 类型的描述符。无参构造生成随机 v4，
// 字符串参数按 RFC 4122 解析，解析失败抛脚本可捕获的错误。
func UUIDSpec() *bind.TypeSpec {
	return &bind.TypeSpec{
		Name:  UUIDName,
		Mode:  bind.InstallGlobal,
		Flags: bind.ClassHasPrivate,
		Construct: func(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
			u, err := uuidFromArg(call.Arg(0))
			if err != nil {
				return nil, err
			}
			if err := recv.Installer.AttachPayload(recv.Object, u); err != nil {
				return nil, err
			}
			return recv.Object.Value(), nil
		},
		Methods: []bind.MethodSpec{
			{Name: "toString", Fn: func(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
				u, err := unboxUUID(recv.Payload())
				if err != nil {
					return nil, err
				}
				return ctx.String(u.String()), nil
			}},
			{Name: "version", Fn: func(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
				u, err := unboxUUID(recv.Payload())
				if err != nil {
					return nil, err
				}
				return ctx.Number(float64(u.Version())), nil
			}},
			{Name: "urn", Fn: func(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
				u, err := unboxUUID(recv.Payload())
				if err != nil {
					return nil, err
				}
				return ctx.String(u.URN()), nil
			}},
		},
		Funcs: []bind.FuncSpec{
			{Name: "isValid", Fn: func(ctx jsvm.Context, call jsvm.Call) (jsvm.Value, error) {
				if call.Arg(0).Kind() != jsvm.KindString {
					return ctx.Bool(false), nil
				}
				return ctx.Bool(uuid.Validate(call.Arg(0).String()) == nil), nil
			}},
		},
	}
}

// InstallUUID 把 UUID 安装到上下文。scope 为 nil 时挂到全局对象。
func InstallUUID(ctx jsvm.Context, scope jsvm.Object, opts ...bind.Option) (*bind.Installer, error) {
	return bind.Install(ctx, scope, UUIDSpec(), opts...)
}

// UUIDValue 读取一个 UUID 实例携带的标识值。
func UUIDValue(ins *bind.Installer, obj jsvm.Object) (uuid.UUID, error) {
	return unboxUUID(ins.Payload(obj))
}

func uuidFromArg(arg jsvm.Value) (uuid.UUID, error) {
	switch {
	case jsvm.IsNullish(arg):
		return uuid.New(), nil
	case arg.Kind() == jsvm.KindString:
		u, err := uuid.Parse(arg.String())
		if err != nil {
			return uuid.Nil, &bind.Error{
				Kind:    bind.ErrNativeFailure,
				Type:    UUIDName,
				Op:      "constructor",
				Message: fmt.Sprintf("UUID constructor: invalid UUID string %q", arg.String()),
			}
		}
		return u, nil
	}
	return uuid.Nil, &bind.Error{
		Kind:    bind.ErrNativeFailure,
		Type:    UUIDName,
		Op:      "constructor",
		Message: "UUID constructor expects a UUID string",
	}
}

func unboxUUID(p any, err error) (uuid.UUID, error) {
	if err != nil {
		return uuid.Nil, err
	}
	u, ok := p.(uuid.UUID)
	if !ok {
		return uuid.Nil, &bind.Error{
			Kind:    bind.ErrNativeFailure,
			Type:    UUIDName,
			Message: "UUID payload corrupted",
		}
	}
	return u, nil
}
