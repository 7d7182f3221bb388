package gojavm

import (
	"github.com/dop251/goja"

	"jsbind-core/jsvm"
)

// gojaValue 把 goja.Value 包装为 jsvm.Value 视图。
type gojaValue struct {
	c *Context
	v goja.Value
}

func (v gojaValue) Kind() jsvm.ValueKind {
	gv := v.v
	if gv == nil || goja.IsUndefined(gv) {
		return jsvm.KindUndefined
	}
	if goja.IsNull(gv) {
		return jsvm.KindNull
	}
	if _, ok := gv.(*goja.Object); ok {
		return jsvm.KindObject
	}
	switch gv.Export().(type) {
	case bool:
		return jsvm.KindBool
	case string:
		return jsvm.KindString
	case int, int32, int64, float64:
		return jsvm.KindNumber
	}
	return jsvm.KindUndefined
}

func (v gojaValue) Bool() bool {
	if v.v == nil {
		return false
	}
	return v.v.ToBoolean()
}

func (v gojaValue) Number() float64 {
	if v.v == nil {
		return 0
	}
	return v.v.ToFloat()
}

func (v gojaValue) String() string {
	if v.v == nil {
		return "undefined"
	}
	return v.v.String()
}

func (v gojaValue) Object() (jsvm.Object, bool) {
	o, ok := v.v.(*goja.Object)
	if !ok {
		return nil, false
	}
	return v.c.wrapObject(o), true
}

func (v gojaValue) Export() any {
	if v.v == nil {
		return nil
	}
	return v.v.Export()
}

// privBox 把原生错误按原样装箱挂在异常对象的隐藏槽上，
// 避免 goja 的值转换改变其 Go 类型。
type privBox struct {
	payload any
}

// gojaObject 把 *goja.Object 包装为 jsvm.Object 视图。
// 同一个脚本对象在 goja 中始终对应同一个 *goja.Object。
type gojaObject struct {
	c *Context
	o *goja.Object
}

func (o *gojaObject) Value() jsvm.Value { return gojaValue{c: o.c, v: o.o} }

func (o *gojaObject) Get(name string) (jsvm.Value, error) {
	v := o.o.Get(name)
	if v == nil {
		return jsvm.Undef, nil
	}
	return o.c.wrapValue(v), nil
}

func (o *gojaObject) Set(name string, v jsvm.Value) error {
	gv, err := o.c.toGoja(v)
	if err != nil {
		return err
	}
	return o.o.Set(name, gv)
}

func (o *gojaObject) Delete(name string) error {
	return o.o.Delete(name)
}

func (o *gojaObject) Has(name string) bool {
	return o.o.Get(name) != nil
}

func (o *gojaObject) Keys() []string {
	return o.o.Keys()
}

func (o *gojaObject) Prototype() jsvm.Object {
	p := o.o.Prototype()
	if p == nil {
		return nil
	}
	return o.c.wrapObject(p)
}

func (o *gojaObject) Class() jsvm.Class {
	cl := o.c.classOf(o.o)
	if cl == nil {
		return nil
	}
	return cl
}

// 私有槽完全存放在宿主侧的存活表里，脚本对象上没有对应属性，
// 因此无法被脚本读出、改写或在实例之间搬运。
func (o *gojaObject) Private() (any, bool) {
	st := o.c.stateOf(o.o)
	if st == nil || !st.occupied {
		return nil, false
	}
	return st.payload, true
}

func (o *gojaObject) SetPrivate(p any) error {
	st := o.c.stateOf(o.o)
	if st == nil {
		return &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象不是存活的类实例"}
	}
	if !st.class.def.HasPrivate {
		return &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象所属类未声明私有槽"}
	}
	st.payload = p
	st.occupied = true
	return nil
}

func (o *gojaObject) ClearPrivate() error {
	st := o.c.stateOf(o.o)
	if st == nil {
		return &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象不是存活的类实例"}
	}
	if !st.class.def.HasPrivate {
		return &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象所属类未声明私有槽"}
	}
	st.payload = nil
	st.occupied = false
	return nil
}

func (o *gojaObject) SameAs(other jsvm.Object) bool {
	oo, ok := other.(*gojaObject)
	return ok && oo.o.SameAs(o.o)
}
