// Package gojavm 是 jsvm 契约的 goja 生产后端。
// 类标记通过脚本对象上的隐藏属性槽携带；原生负载只存放在宿主侧的
// 存活表中，脚本无法读取、覆写或在对象之间搬运。终结流程在
// FreeObject 与 Close 时触发，不依赖引擎的回收时机。
package gojavm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"jsbind-core/jsvm"
)

// 隐藏槽位属性名。槽位均为不可枚举属性，普通脚本枚举不可见。
const (
	classSlot = "__jsbind_class__"
	causeSlot = "__jsbind_cause__"
)

// gojaClass 是一次 DefineClass 的注册记录，按指针身份比较。
type gojaClass struct {
	def jsvm.ClassDef
}

func (cl *gojaClass) ClassName() string { return cl.def.Name }

// instanceState 是类实例的宿主侧记录。私有槽只存在这里，
// 不在脚本对象上留下任何可达属性。
type instanceState struct {
	class    *gojaClass
	payload  any
	occupied bool
}

// Context 实现 jsvm.Context 与 jsvm.Evaluator。
type Context struct {
	cfg    jsvm.Config
	lc     *jsvm.Lifecycle
	logger *zap.SugaredLogger

	rt     *goja.Runtime
	global *gojaObject
	// live 记录所有带类标记的存活对象及其私有槽，Close 时统一终结。
	live   map[*goja.Object]*instanceState
	hasOwn goja.Callable
}

func init() {
	jsvm.Register(jsvm.BackendGoja, func(cfg jsvm.Config) (jsvm.Context, error) {
		return New(cfg)
	})
}

// New 创建 goja 上下文，等价于通过 jsvm.New 指定 BackendGoja。
func New(cfg jsvm.Config) (*Context, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	rt := goja.New()
	c := &Context{
		cfg:    cfg,
		lc:     jsvm.NewLifecycle(),
		logger: cfg.Logger,
		rt:     rt,
		live:   map[*goja.Object]*instanceState{},
	}
	c.global = c.wrapObject(rt.GlobalObject())
	hasOwn, err := rt.RunString("Object.prototype.hasOwnProperty")
	if err != nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInit, Message: "goja 运行时初始化失败", Cause: err}
	}
	fn, ok := goja.AssertFunction(hasOwn)
	if !ok {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInit, Message: "hasOwnProperty 不可调用"}
	}
	c.hasOwn = fn
	return c, nil
}

func (c *Context) Name() jsvm.BackendName { return jsvm.BackendGoja }

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
	hooks := []struct {
		name string
		set  bool
	}{
		{"AddProperty", def.AddProperty != nil},
		{"GetProperty", def.GetProperty != nil},
		{"SetProperty", def.SetProperty != nil},
		{"DelProperty", def.DelProperty != nil},
		{"Enumerate", def.Enumerate != nil},
		{"Resolve", def.Resolve != nil},
		{"Convert", def.Convert != nil},
		{"Call", def.Call != nil},
	}
	var unsupported []string
	for _, h := range hooks {
		if h.set {
			unsupported = append(unsupported, h.name)
		}
	}
	if len(unsupported) > 0 {
		return nil, &jsvm.VMError{
			Kind:    jsvm.ErrUnsupported,
			Message: fmt.Sprintf("goja 后端不支持类钩子: %s", strings.Join(unsupported, ", ")),
		}
	}
	return &gojaClass{def: def}, nil
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
	var o *goja.Object
	if po != nil {
		o = c.rt.CreateObject(po.o)
	} else {
		o = c.rt.NewObject()
	}
	if cl != nil {
		c.tagObject(o, cl)
	}
	return c.wrapObject(o), nil
}

func (c *Context) NewFunction(name string, fn jsvm.NativeFunc) (jsvm.Value, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	if fn == nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "函数体不能为空"}
	}
	impl := func(fc goja.FunctionCall) goja.Value {
		ret, err := fn(c, jsvm.NewCall(c.wrapValue(fc.This), c.wrapArgs(fc.Arguments)...))
		if err != nil {
			panic(c.throwable(err))
		}
		gv, err := c.toGoja(ret)
		if err != nil {
			panic(c.throwable(err))
		}
		return gv
	}
	fnObj := c.rt.ToValue(impl).ToObject(c.rt)
	_ = fnObj.DefineDataProperty("name", c.rt.ToValue(name),
		goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return c.wrapValue(fnObj), nil
}

func (c *Context) NewConstructor(class jsvm.Class, proto jsvm.Object, name string, fn jsvm.NativeFunc) (jsvm.Object, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	cl, err := c.ownClass(class)
	if err != nil {
		return nil, err
	}
	body := fn
	if body == nil && cl != nil {
		body = cl.def.Construct
	}
	if body == nil {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "构造函数体不能为空"}
	}
	po, err := c.ownObject(proto)
	if err != nil {
		return nil, err
	}
	// 类标记在调用构造体之前写入，构造体内即可按类实例识别 receiver。
	// 构造体报错时实例不会返回给脚本，残留标记由 Close 统一清理。
	impl := func(call goja.ConstructorCall) *goja.Object {
		if cl != nil {
			c.tagObject(call.This, cl)
		}
		ret, err := body(c, jsvm.NewCall(c.wrapValue(call.This), c.wrapArgs(call.Arguments)...))
		if err != nil {
			panic(c.throwable(err))
		}
		if ret != nil {
			if ro, ok := ret.Object(); ok {
				if own, ok := ro.(*gojaObject); ok && own.c == c {
					return own.o
				}
			}
		}
		return call.This
	}
	ctorObj := c.rt.ToValue(impl).ToObject(c.rt)
	_ = ctorObj.DefineDataProperty("name", c.rt.ToValue(name),
		goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	if po != nil {
		if err := ctorObj.DefineDataProperty("prototype", po.o,
			goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
			return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "构造函数原型绑定失败", Cause: err}
		}
		if err := po.o.DefineDataProperty("constructor", ctorObj,
			goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "原型 constructor 回链失败", Cause: err}
		}
	}
	if cl != nil && cl.def.HasInstance != nil {
		hook := cl.def.HasInstance
		wrapped := c.wrapObject(ctorObj)
		err := ctorObj.SetSymbol(goja.SymHasInstance, c.rt.ToValue(func(fc goja.FunctionCall) goja.Value {
			target := jsvm.Undef
			if len(fc.Arguments) > 0 {
				target = c.wrapValue(fc.Arguments[0])
			}
			ok, err := hook(c, wrapped, target)
			if err != nil {
				panic(c.throwable(err))
			}
			return c.rt.ToValue(ok)
		}))
		if err != nil {
			return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "instanceof 钩子绑定失败", Cause: err}
		}
	}
	return c.wrapObject(ctorObj), nil
}

// Invoke 以给定 receiver 调用函数值，等价于脚本侧的函数调用。
// 函数抛出由原生侧产生的异常时，返回其原始错误。
func (c *Context) Invoke(fn jsvm.Value, this jsvm.Value, args ...jsvm.Value) (jsvm.Value, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	gv, err := c.toGoja(fn)
	if err != nil {
		return nil, err
	}
	callable, ok := goja.AssertFunction(gv)
	if !ok {
		return nil, &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "值不可调用"}
	}
	gthis, err := c.toGoja(this)
	if err != nil {
		return nil, err
	}
	gargs, err := c.toGojaArgs(args)
	if err != nil {
		return nil, err
	}
	ret, err := callable(gthis, gargs...)
	if err != nil {
		return nil, c.unwrapException(err)
	}
	return c.wrapValue(ret), nil
}

// Construct 以构造语义调用构造函数对象，等价于脚本侧 new 运算。
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
	gargs, err := c.toGojaArgs(args)
	if err != nil {
		return nil, err
	}
	obj, err := c.rt.New(co.o, gargs...)
	if err != nil {
		return nil, c.unwrapException(err)
	}
	return c.wrapObject(obj), nil
}

// Eval 执行一段脚本文本。脚本抛出原生侧产生的异常时返回其原始错误，
// 其余异常与编译错误包装为 ErrEval。
func (c *Context) Eval(code string) (jsvm.Value, error) {
	if !c.lc.Alive() {
		return nil, errClosed()
	}
	v, err := c.rt.RunString(code)
	if err != nil {
		return nil, c.unwrapException(err)
	}
	return c.wrapValue(v), nil
}

func (c *Context) Undefined() jsvm.Value { return c.wrapValue(goja.Undefined()) }

func (c *Context) Null() jsvm.Value { return c.wrapValue(goja.Null()) }

func (c *Context) Bool(b bool) jsvm.Value { return c.wrapValue(c.rt.ToValue(b)) }

func (c *Context) Number(f float64) jsvm.Value { return c.wrapValue(c.rt.ToValue(f)) }

func (c *Context) String(s string) jsvm.Value { return c.wrapValue(c.rt.ToValue(s)) }

// Pin 在 goja 后端为空操作。宿主侧的 Go 引用与 live 表已足以
// 保持对象存活，返回的释放函数可安全地重复调用。
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
	return func() {}, nil
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
	c.finalizeInstance(o.o)
	return nil
}

func (c *Context) Close() error {
	if c.lc.State() == jsvm.StateClosed {
		return nil
	}
	if !c.lc.CompareAndSwap(jsvm.StateReady, jsvm.StateClosing) {
		return &jsvm.VMError{Kind: jsvm.ErrClosed, Message: "上下文正在关闭"}
	}
	objs := make([]*goja.Object, 0, len(c.live))
	for o := range c.live {
		objs = append(objs, o)
	}
	for _, o := range objs {
		c.finalizeInstance(o)
	}
	c.live = map[*goja.Object]*instanceState{}
	c.global = nil
	c.lc.Store(jsvm.StateClosed)
	c.logger.Debugf("goja 上下文已关闭: finalized=%d", len(objs))
	return nil
}

// tagObject 给对象写入类标记并纳入存活跟踪。
// 标记为不可写不可配置属性，脚本无法移除或覆写；
// 已带其他类标记的对象保持原有身份，不会被重新标记。
func (c *Context) tagObject(o *goja.Object, cl *gojaClass) {
	if existing := c.classOf(o); existing != nil {
		if existing == cl {
			if _, tracked := c.live[o]; !tracked {
				c.live[o] = &instanceState{class: cl}
			}
		}
		return
	}
	_ = o.DefineDataProperty(classSlot, c.rt.ToValue(cl),
		goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	c.live[o] = &instanceState{class: cl}
}

// classOf 读取对象自身的类标记。标记必须是自有属性，
// 通过原型链伪造的标记在这里不生效。
func (c *Context) classOf(o *goja.Object) *gojaClass {
	if !c.hasOwnProp(o, classSlot) {
		return nil
	}
	v := o.Get(classSlot)
	if v == nil {
		return nil
	}
	cl, _ := v.Export().(*gojaClass)
	return cl
}

// stateOf 取实例的宿主侧记录，未跟踪或已终结的对象返回 nil。
func (c *Context) stateOf(o *goja.Object) *instanceState {
	return c.live[o]
}

func (c *Context) hasOwnProp(o *goja.Object, name string) bool {
	res, err := c.hasOwn(o, c.rt.ToValue(name))
	if err != nil {
		return false
	}
	return res.ToBoolean()
}

// finalizeInstance 终结一个受跟踪的类实例：清空私有槽并在槽位
// 曾被占用时调用终结钩子。未跟踪或已终结的对象为空操作。
func (c *Context) finalizeInstance(o *goja.Object) {
	st, ok := c.live[o]
	if !ok {
		return
	}
	delete(c.live, o)
	if !st.occupied {
		return
	}
	payload := st.payload
	st.payload = nil
	st.occupied = false
	if st.class.def.Finalize != nil {
		st.class.def.Finalize(payload)
	}
}

// throwable 把原生侧错误转换为脚本可抛出的异常对象。
// 原始错误装箱挂在隐藏槽上，宿主侧捕获后可还原。
func (c *Context) throwable(err error) *goja.Object {
	var errObj *goja.Object
	var se jsvm.ScriptError
	if errors.As(err, &se) && se.ScriptTypeError() {
		errObj = c.rt.NewTypeError(se.Error())
	} else {
		errObj = c.rt.NewGoError(err)
	}
	_ = errObj.DefineDataProperty(causeSlot, c.rt.ToValue(&privBox{payload: err}),
		goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return errObj
}

func (c *Context) unwrapException(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return &jsvm.VMError{Kind: jsvm.ErrEval, Message: "脚本执行失败", Cause: err}
	}
	if cause := c.exceptionCause(ex.Value()); cause != nil {
		return cause
	}
	return &jsvm.VMError{Kind: jsvm.ErrEval, Message: "脚本执行抛出异常", Stack: ex.String(), Cause: err}
}

func (c *Context) exceptionCause(v goja.Value) error {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	if !c.hasOwnProp(obj, causeSlot) {
		return nil
	}
	cv := obj.Get(causeSlot)
	if cv == nil {
		return nil
	}
	if box, ok := cv.Export().(*privBox); ok {
		if cause, ok := box.payload.(error); ok {
			return cause
		}
	}
	return nil
}

func (c *Context) wrapValue(v goja.Value) jsvm.Value {
	if v == nil {
		return jsvm.Undef
	}
	return gojaValue{c: c, v: v}
}

func (c *Context) wrapObject(o *goja.Object) *gojaObject {
	return &gojaObject{c: c, o: o}
}

func (c *Context) wrapArgs(args []goja.Value) []jsvm.Value {
	out := make([]jsvm.Value, len(args))
	for i, a := range args {
		out[i] = c.wrapValue(a)
	}
	return out
}

// toGoja 还原 jsvm.Value 为 goja 值。对象以 gojaValue 形式到达，
// 其他后端的原始值按内容转换，其他上下文的对象拒绝进入本运行时。
func (c *Context) toGoja(v jsvm.Value) (goja.Value, error) {
	if v == nil {
		return goja.Undefined(), nil
	}
	if t, ok := v.(gojaValue); ok {
		if t.c != c {
			return nil, errForeign()
		}
		if t.v == nil {
			return goja.Undefined(), nil
		}
		return t.v, nil
	}
	switch v.Kind() {
	case jsvm.KindUndefined:
		return goja.Undefined(), nil
	case jsvm.KindNull:
		return goja.Null(), nil
	case jsvm.KindBool:
		return c.rt.ToValue(v.Bool()), nil
	case jsvm.KindNumber:
		return c.rt.ToValue(v.Number()), nil
	case jsvm.KindString:
		return c.rt.ToValue(v.String()), nil
	}
	return nil, errForeign()
}

func (c *Context) toGojaArgs(args []jsvm.Value) ([]goja.Value, error) {
	out := make([]goja.Value, len(args))
	for i, a := range args {
		gv, err := c.toGoja(a)
		if err != nil {
			return nil, err
		}
		out[i] = gv
	}
	return out, nil
}

func (c *Context) ownClass(class jsvm.Class) (*gojaClass, error) {
	if class == nil {
		return nil, nil
	}
	cl, ok := class.(*gojaClass)
	if !ok {
		return nil, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "类句柄不属于 goja 后端"}
	}
	return cl, nil
}

func (c *Context) ownObject(obj jsvm.Object) (*gojaObject, error) {
	if obj == nil {
		return nil, nil
	}
	o, ok := obj.(*gojaObject)
	if !ok || o.c != c {
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
