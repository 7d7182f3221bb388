package memvm

import (
	"github.com/samber/lo"

	"jsbind-core/jsvm"
)

// vmClass 是 mem 后端的类注册记录。
type vmClass struct {
	def jsvm.ClassDef
}

func (c *vmClass) ClassName() string { return c.def.Name }

// vmObject 是 mem 后端的对象表示。
// 属性保留插入顺序；私有槽为零或一个负载。
type vmObject struct {
	ctx   *Context
	class *vmClass
	proto *vmObject
	names []string
	props map[string]jsvm.Value

	priv    any
	privSet bool

	// 函数对象与构造函数对象的行为槽。
	callFn    jsvm.NativeFunc
	ctorFn    jsvm.NativeFunc
	ctorCls   *vmClass
	ctorProto *vmObject

	mark bool
	dead bool
}

func (o *vmObject) Value() jsvm.Value {
	return vmValue{kind: jsvm.KindObject, obj: o}
}

func (o *vmObject) Get(name string) (jsvm.Value, error) {
	found := jsvm.Value(undefVal)
	for cur := o; cur != nil; cur = cur.proto {
		if v, ok := cur.props[name]; ok {
			found = v
			break
		}
		// resolve 钩子可以惰性定义属性，定义成功后就地重查一次
		if cur.class != nil && cur.class.def.Resolve != nil && !cur.dead {
			defined, err := cur.class.def.Resolve(o.ctx, cur, name)
			if err != nil {
				return nil, err
			}
			if defined {
				if v, ok := cur.props[name]; ok {
					found = v
					break
				}
			}
		}
	}
	if o.class != nil && o.class.def.GetProperty != nil {
		return o.class.def.GetProperty(o.ctx, o, name, found)
	}
	return found, nil
}

func (o *vmObject) Set(name string, v jsvm.Value) error {
	if v == nil {
		v = undefVal
	}
	if v.Kind() == jsvm.KindObject {
		vo, ok := valueObject(v)
		if !ok || vo.ctx != o.ctx {
			return errForeign()
		}
	}
	if o.class != nil && o.class.def.SetProperty != nil {
		nv, err := o.class.def.SetProperty(o.ctx, o, name, v)
		if err != nil {
			return err
		}
		if nv != nil {
			v = nv
		}
	}
	_, existed := o.props[name]
	o.ownSet(name, v)
	if !existed && o.class != nil && o.class.def.AddProperty != nil {
		if err := o.class.def.AddProperty(o.ctx, o, name, v); err != nil {
			o.ownDelete(name)
			return err
		}
	}
	return nil
}

func (o *vmObject) Delete(name string) error {
	if _, ok := o.props[name]; !ok {
		return nil
	}
	if o.class != nil && o.class.def.DelProperty != nil {
		allowed, err := o.class.def.DelProperty(o.ctx, o, name)
		if err != nil {
			return err
		}
		if !allowed {
			return nil
		}
	}
	o.ownDelete(name)
	return nil
}

func (o *vmObject) Has(name string) bool {
	for cur := o; cur != nil; cur = cur.proto {
		if _, ok := cur.props[name]; ok {
			return true
		}
	}
	return false
}

// Keys 没有错误通道，枚举钩子失败时记录日志并退回自有属性名。
func (o *vmObject) Keys() []string {
	keys := append([]string(nil), o.names...)
	if o.class != nil && o.class.def.Enumerate != nil {
		extra, err := o.class.def.Enumerate(o.ctx, o)
		if err != nil {
			o.ctx.logger.Warnf("类 %s 的枚举钩子失败: %v", o.class.def.Name, err)
		} else if len(extra) > 0 {
			keys = lo.Uniq(append(keys, extra...))
		}
	}
	return keys
}

func (o *vmObject) Prototype() jsvm.Object {
	if o.proto == nil {
		return nil
	}
	return o.proto
}

func (o *vmObject) Class() jsvm.Class {
	if o.class == nil {
		return nil
	}
	return o.class
}

func (o *vmObject) Private() (any, bool) {
	return o.priv, o.privSet
}

func (o *vmObject) SetPrivate(p any) error {
	if o.class == nil || !o.class.def.HasPrivate {
		return &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象所属类未声明私有槽"}
	}
	o.priv = p
	o.privSet = true
	return nil
}

func (o *vmObject) ClearPrivate() error {
	if o.class == nil || !o.class.def.HasPrivate {
		return &jsvm.VMError{Kind: jsvm.ErrUnsupported, Message: "对象所属类未声明私有槽"}
	}
	o.priv = nil
	o.privSet = false
	return nil
}

func (o *vmObject) SameAs(other jsvm.Object) bool {
	oo, ok := other.(*vmObject)
	return ok && oo == o
}

func (o *vmObject) ownSet(name string, v jsvm.Value) {
	if o.props == nil {
		o.props = map[string]jsvm.Value{}
	}
	if _, ok := o.props[name]; !ok {
		o.names = append(o.names, name)
	}
	o.props[name] = v
}

func (o *vmObject) ownDelete(name string) {
	delete(o.props, name)
	for i, n := range o.names {
		if n == name {
			o.names = append(o.names[:i], o.names[i+1:]...)
			break
		}
	}
}
