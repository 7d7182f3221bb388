// Package memvm 是 jsvm 契约的纯 Go 参考后端。
// 它只提供对象模型、私有槽与显式回收器，不包含脚本解析与执行，
// 用于在不依赖真实引擎的场景下对上层绑定做确定性验证。
package memvm

import (
	"go.uber.org/zap"

	"jsbind-core/jsvm"
)

// Context 实现 jsvm.Context 与 jsvm.Collector。
type Context struct {
	cfg    jsvm.Config
	lc     *jsvm.Lifecycle
	logger *zap.SugaredLogger

	global  *vmObject
	objects map[*vmObject]struct{}
	pins    map[*vmObject]int
}

func init() {
	jsvm.Register(jsvm.BackendMem, func(cfg jsvm.Config) (jsvm.Context, error) {
		return New(cfg)
	})
}

// New 创建 mem 上下文，等价于通过 jsvm.New 指定 BackendMem。
func New(cfg jsvm.Config) (*Context, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	c := &Context{
		cfg:     cfg,
		lc:      jsvm.NewLifecycle(),
		logger:  cfg.Logger,
		objects: map[*vmObject]struct{}{},
		pins:    map[*vmObject]int{},
	}
	c.global = c.allocObject(nil, nil)
	return c, nil
}

func (c *Context) Name() jsvm.BackendName { return jsvm.BackendMem }

func (c *Context) Global() jsvm.Object {
	if c.global == nil {
		return nil
	}
	return c.global
}

func (c *Context) DefineClass(def jsvm.ClassDef) (jsvm.Class, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	if def.Name == "" {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "类名不能为空"}
	}
	return &vmClass{def: def}, nil
}

func (c *Context) NewObject(class jsvm.Class, proto jsvm.Object) (jsvm.Object, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	cl, err := c.ownClass(class)
	if err != nil {
		return nil, err
	}
	po, err := c.ownObject(proto)
	if err != nil {
		return nil, err
	}
	return c.allocObject(cl, po), nil
}

func (c *Context) NewFunction(name string, fn jsvm.NativeFunc) (jsvm.Value, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	if fn == nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "函数体不能为空"}
	}
	o := c.allocObject(nil, nil)
	o.callFn = fn
	_ = o.Set("name", c.String(name))
	return o.Value(), nil
}

func (c *Context) NewConstructor(class jsvm.Class, proto jsvm.Object, name string, fn jsvm.NativeFunc) (jsvm.Object, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	cl, err := c.ownClass(class)
	if err != nil {
		return nil, err
	}
	if fn == nil && (cl == nil || cl.def.Construct == nil) {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "构造函数体不能为空"}
	}
	po, err := c.ownObject(proto)
	if err != nil {
		return nil, err
	}
	ctor := c.allocObject(nil, nil)
	ctor.ctorFn = fn
	ctor.ctorCls = cl
	ctor.ctorProto = po
	_ = ctor.Set("name", c.String(name))
	if po != nil {
		_ = ctor.Set("prototype", po.Value())
		_ = po.Set("constructor", ctor.Value())
	}
	return ctor, nil
}

// Invoke 以给定 receiver 调用函数值，等价于脚本侧的函数调用。
func (c *Context) Invoke(fn jsvm.Value, this jsvm.Value, args ...jsvm.Value) (jsvm.Value, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	o, ok := valueObject(fn)
	if !ok || o.ctx != c {
		return nil, &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "值不可调用"}
	}
	body := o.callFn
	if body == nil && o.class != nil {
		body = o.class.def.Call
	}
	if body == nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "值不可调用"}
	}
	return body(c, jsvm.NewCall(this, args...))
}

// Construct 以构造语义调用构造函数对象，等价于脚本侧 new 运算。
// 构造钩子失败时，预创建的实例不会返回，留待回收器处理。
func (c *Context) Construct(ctor jsvm.Object, args ...jsvm.Value) (jsvm.Object, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	co, err := c.ownObject(ctor)
	if err != nil {
		return nil, err
	}
	if co == nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象不可作为构造函数"}
	}
	body := co.ctorFn
	if body == nil && co.ctorCls != nil {
		body = co.ctorCls.def.Construct
	}
	if body == nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象不可作为构造函数"}
	}
	inst := c.allocObject(co.ctorCls, co.ctorProto)
	ret, err := body(c, jsvm.NewCall(inst.Value(), args...))
	if err != nil {
		return nil, err
	}
	if ret != nil {
		if ro, ok := valueObject(ret); ok && ro.ctx == c {
			return ro, nil
		}
	}
	return inst, nil
}

func (c *Context) Undefined() jsvm.Value { return undefVal }

func (c *Context) Null() jsvm.Value { return nullVal }

func (c *Context) Bool(b bool) jsvm.Value { return vmValue{kind: jsvm.KindBool, b: b} }

func (c *Context) Number(f float64) jsvm.Value { return vmValue{kind: jsvm.KindNumber, f: f} }

func (c *Context) String(s string) jsvm.Value { return vmValue{kind: jsvm.KindString, s: s} }

func (c *Context) Pin(obj jsvm.Object) (func(), error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	o, err := c.ownObject(obj)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "固定对象不能为空"}
	}
	c.pins[o]++
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if n, ok := c.pins[o]; ok {
			if n <= 1 {
				delete(c.pins, o)
			} else {
				c.pins[o] = n - 1
			}
		}
	}, nil
}

func (c *Context) FreeObject(obj jsvm.Object) error {
	if !c.lc.Alive() {
		return errClosed()
	}
	o, err := c.ownObject(obj)
	if err != nil {
		return err
	}
	if o == nil {
		return nil
	}
	c.finalizeObject(o)
	return nil
}

func (c *Context) Close() error {
	if c.lc.State() == jsvm.StateClosed {
		return nil
	}
	if !c.lc.CompareAndSwap(jsvm.StateReady, jsvm.StateClosing) {
		return &jsvm.VMError{Kind: jsvm.ErrClosed, Message: "上下文正在关闭"}
	}
	objs := make([]*vmObject, 0, len(c.objects))
	for o := range c.objects {
		objs = append(objs, o)
	}
	for _, o := range objs {
		c.finalizeObject(o)
	}
	c.objects = map[*vmObject]struct{}{}
	c.pins = map[*vmObject]int{}
	c.global = nil
	c.lc.Store(jsvm.StateClosed)
	c.logger.Debugf("mem 上下文已关闭: finalized=%d", len(objs))
	return nil
}

func (c *Context) allocObject(class *vmClass, proto *vmObject) *vmObject {
	o := &vmObject{ctx: c, class: class, proto: proto}
	c.objects[o] = struct{}{}
	return o
}

func (c *Context) ownClass(class jsvm.Class) (*vmClass, error) {
	if class == nil {
		return nil, nil
	}
	cl, ok := class.(*vmClass)
	if !ok {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "类句柄不属于 mem 后端"}
	}
	return cl, nil
}

func (c *Context) ownObject(obj jsvm.Object) (*vmObject, error) {
	if obj == nil {
		return nil, nil
	}
	o, ok := obj.(*vmObject)
	if !ok || o.ctx != c {
		return nil, errForeign()
	}
	return o, nil
}

func errClosed() *jsvm.VMError {
	return &jsvm.VMError{Kind: jsvm.ErrClosed, Message: "上下文已关闭"}
}

func errForeign() *jsvm.VMError {
	return &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "对象不属于当前上下文"}
}
