package memvm_test

import (
	"testing"

	"jsbind-core/jsvm"
	"jsbind-core/jsvm/memvm"
)

func newCtx(t *testing.T) *memvm.Context {
	t.Helper()
	ctx, err := memvm.New(jsvm.Config{Name: jsvm.BackendMem})
	if err != nil {
		t.Fatalf("创建 mem 上下文失败: %v", err)
	}
	return ctx
}

func TestContextBasics(t *testing.T) {
	ctx := newCtx(t)
	defer func() { _ = ctx.Close() }()

	if ctx.Name() != jsvm.BackendMem {
		t.Fatalf("后端类型错误: %s", ctx.Name())
	}
	g := ctx.Global()
	if g == nil {
		t.Fatal("global 不应为 nil")
	}

	if err := g.Set("answer", ctx.Number(42)); err != nil {
		t.Fatalf("设置属性失败: %v", err)
	}
	v, err := g.Get("answer")
	if err != nil {
		t.Fatalf("读取属性失败: %v", err)
	}
	if v.Kind() != jsvm.KindNumber || v.Number() != 42 {
		t.Fatalf("属性值错误: kind=%v num=%v", v.Kind(), v.Number())
	}
	if !g.Has("answer") {
		t.Fatal("Has 应命中已设置属性")
	}
	missing, err := g.Get("missing")
	if err != nil {
		t.Fatalf("读取缺失属性失败: %v", err)
	}
	if !jsvm.IsUndefined(missing) {
		t.Fatal("缺失属性应为 undefined")
	}

	if err := g.Delete("answer"); err != nil {
		t.Fatalf("删除属性失败: %v", err)
	}
	if g.Has("answer") {
		t.Fatal("删除后属性不应存在")
	}
}

func TestValueFactories(t *testing.T) {
	ctx := newCtx(t)
	defer func() { _ = ctx.Close() }()

	cases := []struct {
		v    jsvm.Value
		kind jsvm.ValueKind
	}{
		{ctx.Undefined(), jsvm.KindUndefined},
		{ctx.Null(), jsvm.KindNull},
		{ctx.Bool(true), jsvm.KindBool},
		{ctx.Number(1.5), jsvm.KindNumber},
		{ctx.String("x"), jsvm.KindString},
	}
	for i, tc := range cases {
		if tc.v.Kind() != tc.kind {
			t.Fatalf("用例 %d 值类别错误: got=%v want=%v", i, tc.v.Kind(), tc.kind)
		}
	}
	if ctx.String("abc").String() != "abc" {
		t.Fatal("字符串值内容错误")
	}
	if ctx.Bool(true).Export() != true {
		t.Fatal("布尔值导出错误")
	}
}

func TestPrivateSlot(t *testing.T) {
	ctx := newCtx(t)
	defer func() { _ = ctx.Close() }()

	cls, err := ctx.DefineClass(jsvm.ClassDef{Name: "Box", HasPrivate: true})
	if err != nil {
		t.Fatalf("注册类失败: %v", err)
	}
	obj, err := ctx.NewObject(cls, nil)
	if err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}
	if _, ok := obj.Private(); ok {
		t.Fatal("新实例私有槽应为空")
	}
	if err := obj.SetPrivate("payload"); err != nil {
		t.Fatalf("写入私有槽失败: %v", err)
	}
	p, ok := obj.Private()
	if !ok || p != "payload" {
		t.Fatalf("私有槽内容错误: ok=%v p=%v", ok, p)
	}
	if err := obj.ClearPrivate(); err != nil {
		t.Fatalf("清空私有槽失败: %v", err)
	}
	if _, ok := obj.Private(); ok {
		t.Fatal("清空后私有槽应为空")
	}
	if err := obj.SetPrivate("again"); err != nil {
		t.Fatalf("清空后重写私有槽失败: %v", err)
	}

	plain, err := ctx.NewObject(nil, nil)
	if err != nil {
		t.Fatalf("创建普通对象失败: %v", err)
	}
	err = plain.SetPrivate("x")
	if err == nil {
		t.Fatal("普通对象写私有槽应失败")
	}
	ve, ok := err.(*jsvm.VMError)
	if !ok || ve.Kind != jsvm.ErrUnsupported {
		t.Fatalf("错误分类不正确: %v", err)
	}
}

func TestDefineClassRequiresName(t *testing.T) {
	ctx := newCtx(t)
	defer func() { _ = ctx.Close() }()

	if _, err := ctx.DefineClass(jsvm.ClassDef{}); err == nil {
		t.Fatal("空类名应被拒绝")
	}
}

func TestPrototypeChainLookup(t *testing.T) {
	ctx := newCtx(t)
	defer func() { _ = ctx.Close() }()

	proto, err := ctx.NewObject(nil, nil)
	if err != nil {
		t.Fatalf("创建原型失败: %v", err)
	}
	if err := proto.Set("greet", ctx.String("hello")); err != nil {
		t.Fatalf("设置原型属性失败: %v", err)
	}
	obj, err := ctx.NewObject(nil, proto)
	if err != nil {
		t.Fatalf("创建对象失败: %v", err)
	}
	v, err := obj.Get("greet")
	if err != nil {
		t.Fatalf("读取继承属性失败: %v", err)
	}
	if v.String() != "hello" {
		t.Fatalf("继承属性值错误: %s", v.String())
	}
	if obj.Prototype() == nil || !obj.Prototype().SameAs(proto) {
		t.Fatal("原型指向错误")
	}
}

func TestCrossContextRejection(t *testing.T) {
	ctx1 := newCtx(t)
	defer func() { _ = ctx1.Close() }()
	ctx2 := newCtx(t)
	defer func() { _ = ctx2.Close() }()

	obj, err := ctx1.NewObject(nil, nil)
	if err != nil {
		t.Fatalf("创建对象失败: %v", err)
	}

	checkForeign := func(what string, err error) {
		t.Helper()
		ve, ok := err.(*jsvm.VMError)
		if !ok || ve.Kind != jsvm.ErrInternal {
			t.Fatalf("%s 应拒绝其他上下文的对象: %v", what, err)
		}
	}
	checkForeign("Set", ctx2.Global().Set("leak", obj.Value()))
	if _, err := ctx2.NewObject(nil, obj); err == nil {
		t.Fatal("外来原型应被拒绝")
	} else {
		checkForeign("NewObject", err)
	}
	if _, err := ctx2.Pin(obj); err == nil {
		t.Fatal("外来对象固定应被拒绝")
	} else {
		checkForeign("Pin", err)
	}
	checkForeign("FreeObject", ctx2.FreeObject(obj))
}

func TestContextClosedOperations(t *testing.T) {
	ctx := newCtx(t)
	if err := ctx.Close(); err != nil {
		t.Fatalf("关闭上下文失败: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("重复关闭应为空操作: %v", err)
	}
	if _, err := ctx.DefineClass(jsvm.ClassDef{Name: "X"}); err == nil {
		t.Fatal("关闭后注册类应失败")
	}
	if _, err := ctx.NewObject(nil, nil); err == nil {
		t.Fatal("关闭后创建对象应失败")
	}
	_, err := ctx.NewFunction("f", func(jsvm.Context, jsvm.Call) (jsvm.Value, error) {
		return nil, nil
	})
	if err == nil {
		t.Fatal("关闭后创建函数应失败")
	}
	ve, ok := err.(*jsvm.VMError)
	if !ok || ve.Kind != jsvm.ErrClosed {
		t.Fatalf("错误分类不正确: %v", err)
	}
}
