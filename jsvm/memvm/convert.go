package memvm

import (
	"math"
	"strconv"
	"strings"

	"jsbind-core/jsvm"
)

// ToString 把值转换为字符串，对象优先走类的 Convert 钩子。
func (c *Context) ToString(v jsvm.Value) (string, error) {
	if v == nil {
		return "undefined", nil
	}
	if o, ok := valueObject(v); ok {
		if o.ctx != c {
			return "", errForeign()
		}
		if o.class != nil && o.class.def.Convert != nil {
			pv, err := o.class.def.Convert(c, o, jsvm.HintString)
			if err != nil {
				return "", err
			}
			if pv != nil {
				if _, isObj := pv.Object(); !isObj {
					return pv.String(), nil
				}
			}
		}
	}
	return v.String(), nil
}

// ToNumber 把值转换为数值，对象优先走类的 Convert 钩子。
func (c *Context) ToNumber(v jsvm.Value) (float64, error) {
	if v == nil {
		return math.NaN(), nil
	}
	if o, ok := valueObject(v); ok {
		if o.ctx != c {
			return 0, errForeign()
		}
		if o.class != nil && o.class.def.Convert != nil {
			pv, err := o.class.def.Convert(c, o, jsvm.HintNumber)
			if err != nil {
				return 0, err
			}
			if pv != nil {
				if _, isObj := pv.Object(); !isObj {
					return primitiveToNumber(pv), nil
				}
			}
		}
		return math.NaN(), nil
	}
	return primitiveToNumber(v), nil
}

func primitiveToNumber(v jsvm.Value) float64 {
	switch v.Kind() {
	case jsvm.KindNumber:
		return v.Number()
	case jsvm.KindBool:
		if v.Bool() {
			return 1
		}
		return 0
	case jsvm.KindString:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case jsvm.KindNull:
		return 0
	default:
		return math.NaN()
	}
}

// InstanceOf 模拟脚本层 instanceof 运算。
// 构造函数声明 HasInstance 钩子时优先走钩子，否则按原型链判定。
func (c *Context) InstanceOf(v jsvm.Value, ctor jsvm.Object) (bool, error) {
	co, err := c.ownObject(ctor)
	if err != nil {
		return false, err
	}
	if co == nil {
		return false, &jsvm.VMError{Kind: jsvm.ErrInternal, Message: "构造函数不能为空"}
	}
	if co.ctorCls != nil && co.ctorCls.def.HasInstance != nil {
		return co.ctorCls.def.HasInstance(c, co, v)
	}
	target, ok := valueObject(v)
	if !ok {
		return false, nil
	}
	protoVal, err := co.Get("prototype")
	if err != nil {
		return false, err
	}
	proto, ok := valueObject(protoVal)
	if !ok {
		return false, nil
	}
	for cur := target.proto; cur != nil; cur = cur.proto {
		if cur == proto {
			return true, nil
		}
	}
	return false, nil
}
