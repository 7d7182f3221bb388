package memvm

import (
	"math"
	"strconv"

	"jsbind-core/jsvm"
)

// vmValue 是 mem 后端的统一值表示。
type vmValue struct {
	kind jsvm.ValueKind
	b    bool
	f    float64
	s    string
	obj  *vmObject
}

var (
	undefVal = vmValue{kind: jsvm.KindUndefined}
	nullVal  = vmValue{kind: jsvm.KindNull}
)

func (v vmValue) Kind() jsvm.ValueKind { return v.kind }

func (v vmValue) Bool() bool { return v.b }

func (v vmValue) Number() float64 {
	if v.kind == jsvm.KindNumber {
		return v.f
	}
	return math.NaN()
}

func (v vmValue) String() string {
	switch v.kind {
	case jsvm.KindUndefined:
		return "undefined"
	case jsvm.KindNull:
		return "null"
	case jsvm.KindBool:
		return strconv.FormatBool(v.b)
	case jsvm.KindNumber:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case jsvm.KindString:
		return v.s
	default:
		name := "Object"
		if v.obj != nil && v.obj.class != nil {
			name = v.obj.class.def.Name
		}
		return "[object " + name + "]"
	}
}

func (v vmValue) Object() (jsvm.Object, bool) {
	if v.kind == jsvm.KindObject && v.obj != nil {
		return v.obj, true
	}
	return nil, false
}

func (v vmValue) Export() any {
	switch v.kind {
	case jsvm.KindBool:
		return v.b
	case jsvm.KindNumber:
		return v.f
	case jsvm.KindString:
		return v.s
	case jsvm.KindObject:
		return v.obj
	default:
		return nil
	}
}

func valueObject(v jsvm.Value) (*vmObject, bool) {
	if v == nil {
		return nil, false
	}
	obj, ok := v.Object()
	if !ok {
		return nil, false
	}
	o, ok := obj.(*vmObject)
	return o, ok
}
