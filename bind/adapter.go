package bind

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"jsbind-core/jsvm"
)

// Receiver 是通过接收者检查后的方法调用目标。
type Receiver struct {
	// Object 是匹配的实例对象。
	Object jsvm.Object
	// Type 是匹配的类型描述符。
	Type *TypeSpec
	// Installer 是该类型在当前上下文中的安装器。
	Installer *Installer
}

// Payload 读取接收者实例私有槽中的负载。
func (r Receiver) Payload() (any, error) {
	return r.Installer.Payload(r.Object)
}

// Adapt 把自由函数体包装为可注册到后端的原生函数。
// 函数体的任何失败，无论错误返回还是 panic，都收敛为一个 *Error
// 交给后端抛成脚本可捕获的异常，绝不终止宿主进程。
func Adapt(name string, fn Func) jsvm.NativeFunc {
	return func(ctx jsvm.Context, call jsvm.Call) (v jsvm.Value, err error) {
		defer func() {
			if r := recover(); r != nil {
				loggerFor(ctx).Warnf("原生函数 %s panic: %v", name, r)
				v, err = nil, &Error{
					Kind:    ErrNativeFailure,
					Op:      name,
					Message: fmt.Sprintf("%s failed: %v", name, r),
				}
			}
		}()
		v, err = fn(ctx, call)
		if err != nil {
			return nil, asNativeFailure(name, err)
		}
		return v, nil
	}
}

// AdaptConstrained 在 Adapt 的基础上增加接收者检查，检查按固定
// 顺序短路：接收者不是对象报 NotAnObject；不属于 types 中任一
// 已安装类型报 WrongType；excludeProto 且接收者恰为匹配类型的
// 原型时报 CalledOnPrototype。任何一步失败，fn 都不会执行。
func AdaptConstrained(name string, excludeProto bool, types []*TypeSpec, fn Method) jsvm.NativeFunc {
	expected := strings.Join(lo.Map(types, func(t *TypeSpec, _ int) string { return t.Name }), " or ")
	return func(ctx jsvm.Context, call jsvm.Call) (v jsvm.Value, err error) {
		recv, cerr := checkReceiver(ctx, name, expected, excludeProto, types, call.This())
		if cerr != nil {
			return nil, cerr
		}
		defer func() {
			if r := recover(); r != nil {
				loggerFor(ctx).Warnf("原生方法 %s panic: %v", name, r)
				v, err = nil, &Error{
					Kind:    ErrNativeFailure,
					Op:      name,
					Message: fmt.Sprintf("%s failed: %v", name, r),
				}
			}
		}()
		v, err = fn(ctx, recv, call)
		if err != nil {
			return nil, asNativeFailure(name, err)
		}
		return v, nil
	}
}

func checkReceiver(ctx jsvm.Context, name, expected string, excludeProto bool, types []*TypeSpec, this jsvm.Value) (Receiver, error) {
	if jsvm.IsNullish(this) {
		return Receiver{}, notAnObject(name)
	}
	obj, ok := this.Object()
	if !ok {
		return Receiver{}, notAnObject(name)
	}
	for _, t := range types {
		ins := installerFor(ctx, t)
		if ins == nil || !ins.owns(obj) {
			continue
		}
		if excludeProto && ins.proto != nil && obj.SameAs(ins.proto) {
			return Receiver{}, &Error{
				Kind:    ErrCalledOnPrototype,
				Type:    t.Name,
				Op:      name,
				Message: fmt.Sprintf("%s cannot be called on the %s prototype", name, t.Name),
			}
		}
		return Receiver{Object: obj, Type: t, Installer: ins}, nil
	}
	return Receiver{}, &Error{
		Kind:    ErrWrongType,
		Op:      name,
		Message: fmt.Sprintf("%s can only be called on objects of type %s", name, expected),
	}
}

func notAnObject(name string) *Error {
	return &Error{
		Kind:    ErrNotAnObject,
		Op:      name,
		Message: fmt.Sprintf("%s can only be called on objects", name),
	}
}

// asNativeFailure 保留已是绑定层错误的原始分类，其余错误包装为
// NativeFailure。
func asNativeFailure(name string, err error) error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return &Error{
		Kind:    ErrNativeFailure,
		Op:      name,
		Message: fmt.Sprintf("%s failed: %v", name, err),
		Cause:   err,
	}
}
