package stdtypes_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"jsbind-core/bind"
	"jsbind-core/jsvm"
	_ "jsbind-core/jsvm/gojavm"
	_ "jsbind-core/jsvm/memvm"
	"jsbind-core/stdtypes"
)

const knownUUID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func newGojaCtx(t *testing.T) jsvm.Context {
	t.Helper()
	ctx, err := jsvm.New(jsvm.Config{Name: jsvm.BackendGoja})
	if err != nil {
		t.Fatalf("创建 goja 上下文失败: %v", err)
	}
	t.Cleanup(func() {
		bind.Teardown(ctx)
		_ = ctx.Close()
	})
	return ctx
}

func newMemCtx(t *testing.T) jsvm.Context {
	t.Helper()
	ctx, err := jsvm.New(jsvm.Config{Name: jsvm.BackendMem})
	if err != nil {
		t.Fatalf("创建 mem 上下文失败: %v", err)
	}
	t.Cleanup(func() {
		bind.Teardown(ctx)
		_ = ctx.Close()
	})
	return ctx
}

func evalScript(t *testing.T, ctx jsvm.Context, code string) jsvm.Value {
	t.Helper()
	ev, ok := ctx.(jsvm.Evaluator)
	if !ok {
		t.Fatal("上下文应支持脚本执行")
	}
	v, err := ev.Eval(code)
	if err != nil {
		t.Fatalf("执行脚本失败: %v\n%s", err, code)
	}
	return v
}

func TestInt64ScriptRoundTrip(t *testing.T) {
	ctx := newGojaCtx(t)
	if _, err := stdtypes.InstallInt64(ctx, nil); err != nil {
		t.Fatalf("安装 Int64 失败: %v", err)
	}

	checks := []struct {
		code string
		want string
	}{
		{`new Int64("9223372036854775807").toString()`, "9223372036854775807"},
		{`new Int64("-9223372036854775808").toString()`, "-9223372036854775808"},
		{`new Int64().toString()`, "0"},
		{`new Int64(42).toString()`, "42"},
		{`new Int64(-7).toString()`, "-7"},
		{`Int64.fromString("123").toString()`, "123"},
		{`String(new Int64("7"))`, "7"},
		{`String(new Int64("1") instanceof Int64)`, "true"},
		{`String(Int64.fromString("1") instanceof Int64)`, "true"},
		{`String(new Int64(42).toNumber() === 42)`, "true"},
		// int64 最大值转 number 按最近的浮点数舍入到 2^63
		{`String(new Int64("9223372036854775807").toNumber() === 9223372036854775808)`, "true"},
	}
	for _, tc := range checks {
		if got := evalScript(t, ctx, tc.code).String(); got != tc.want {
			t.Fatalf("%s = %s, 期望 %s", tc.code, got, tc.want)
		}
	}
}

func TestInt64ConstructorRejections(t *testing.T) {
	ctx := newGojaCtx(t)
	if _, err := stdtypes.InstallInt64(ctx, nil); err != nil {
		t.Fatalf("安装 Int64 失败: %v", err)
	}

	evalScript(t, ctx, `function classify(fn) {
		try { fn(); return "no-throw"; } catch (e) {
			return e instanceof TypeError ? "TypeError" : "Error";
		}
	}`)

	rejected := []string{
		`new Int64("12.5")`,
		`new Int64("0x10")`,
		`new Int64(" 7 ")`,
		`new Int64("")`,
		`new Int64("9223372036854775808")`,
		`new Int64(1.5)`,
		`new Int64(1e19)`,
		`new Int64(NaN)`,
		`new Int64({})`,
		`new Int64(true)`,
		`Int64.fromString(5)`,
	}
	for _, code := range rejected {
		got := evalScript(t, ctx, `classify(function () { `+code+`; })`).String()
		if got != "Error" {
			t.Fatalf("%s 应抛出可捕获的一般错误, 实际 %s", code, got)
		}
	}

	// 原型上的方法调用在进入函数体之前就被拒绝
	got := evalScript(t, ctx, `classify(function () { Int64.prototype.toString(); })`).String()
	if got != "TypeError" {
		t.Fatalf("原型调用 = %s, 期望 TypeError", got)
	}

	// 拒绝不影响后续使用
	if got := evalScript(t, ctx, `new Int64("1").toString()`).String(); got != "1" {
		t.Fatalf("拒绝之后 Int64 应仍可用, 实际 %s", got)
	}
}

func TestInt64HostHelpers(t *testing.T) {
	ctx := newMemCtx(t)
	ins, err := stdtypes.InstallInt64(ctx, nil)
	if err != nil {
		t.Fatalf("安装 Int64 失败: %v", err)
	}

	// 超出 2^53 的值经字符串构造后精确往返
	obj, err := ins.NewInstance(ctx.String("9007199254740993"))
	if err != nil {
		t.Fatalf("构造失败: %v", err)
	}
	n, err := stdtypes.Int64Value(ins, obj)
	if err != nil {
		t.Fatalf("读取负载失败: %v", err)
	}
	if n != 9007199254740993 {
		t.Fatalf("负载 = %d, 期望 9007199254740993", n)
	}

	plain, err := ctx.NewObject(nil, nil)
	if err != nil {
		t.Fatalf("创建普通对象失败: %v", err)
	}
	if _, err := stdtypes.Int64Value(ins, plain); bind.KindOf(err) != bind.ErrWrongType {
		t.Fatalf("普通对象应报 WrongType, 实际 %v", err)
	}
	if _, err := stdtypes.Int64Value(ins, ins.Prototype()); bind.KindOf(err) != bind.ErrSlotEmpty {
		t.Fatalf("原型应报 SlotEmpty, 实际 %v", err)
	}

	if _, err := ins.NewInstance(ctx.Number(12.5)); bind.KindOf(err) != bind.ErrConstructionFailed {
		t.Fatalf("非整数 number 应报 ConstructionFailed, 实际 %v", err)
	} else if !strings.Contains(err.Error(), "not an integer") {
		t.Fatalf("错误信息应包含原因, 实际 %v", err)
	}
	if _, err := ins.NewInstance(ctx.String("not a number")); bind.KindOf(err) != bind.ErrConstructionFailed {
		t.Fatalf("非法字符串应报 ConstructionFailed, 实际 %v", err)
	}
}

func TestUUIDThroughScript(t *testing.T) {
	ctx := newGojaCtx(t)
	if _, err := stdtypes.InstallUUID(ctx, nil); err != nil {
		t.Fatalf("安装 UUID 失败: %v", err)
	}

	checks := []struct {
		code string
		want string
	}{
		{`new UUID("` + knownUUID + `").toString()`, knownUUID},
		{`String(new UUID("` + knownUUID + `").version())`, "1"},
		{`new UUID("` + knownUUID + `").urn()`, "urn:uuid:" + knownUUID},
		{`String(new UUID().version())`, "4"},
		{`String(new UUID().toString().length)`, "36"},
		{`String(UUID.isValid("` + knownUUID + `"))`, "true"},
		{`String(UUID.isValid("not-a-uuid"))`, "false"},
		{`String(UUID.isValid(42))`, "false"},
		{`String(new UUID() instanceof UUID)`, "true"},
		{`var u = new UUID(); String(new UUID(u.toString()).toString() === u.toString())`, "true"},
	}
	for _, tc := range checks {
		if got := evalScript(t, ctx, tc.code).String(); got != tc.want {
			t.Fatalf("%s = %s, 期望 %s", tc.code, got, tc.want)
		}
	}

	got := evalScript(t, ctx, `(function () {
		try { new UUID("zzz"); return "no-throw"; } catch (e) {
			return (e instanceof Error) + ":" + (e instanceof TypeError);
		}
	})()`).String()
	if got != "true:false" {
		t.Fatalf("非法 UUID 构造 = %s, 期望 true:false", got)
	}
}

func TestUUIDHostHelpers(t *testing.T) {
	ctx := newMemCtx(t)
	ins, err := stdtypes.InstallUUID(ctx, nil)
	if err != nil {
		t.Fatalf("安装 UUID 失败: %v", err)
	}

	obj, err := ins.NewInstance(ctx.String(knownUUID))
	if err != nil {
		t.Fatalf("构造失败: %v", err)
	}
	u, err := stdtypes.UUIDValue(ins, obj)
	if err != nil {
		t.Fatalf("读取负载失败: %v", err)
	}
	if u != uuid.MustParse(knownUUID) {
		t.Fatalf("负载 = %s, 期望 %s", u, knownUUID)
	}

	random, err := ins.NewInstance()
	if err != nil {
		t.Fatalf("无参构造失败: %v", err)
	}
	ru, err := stdtypes.UUIDValue(ins, random)
	if err != nil {
		t.Fatalf("读取负载失败: %v", err)
	}
	if ru.Version() != 4 {
		t.Fatalf("无参构造版本 = %d, 期望 4", ru.Version())
	}

	if _, err := ins.NewInstance(ctx.String("zzz")); bind.KindOf(err) != bind.ErrConstructionFailed {
		t.Fatalf("非法字符串应报 ConstructionFailed, 实际 %v", err)
	}
}

func TestStdTypesCrossReceiver(t *testing.T) {
	ctx := newGojaCtx(t)
	if _, err := stdtypes.InstallInt64(ctx, nil); err != nil {
		t.Fatalf("安装 Int64 失败: %v", err)
	}
	if _, err := stdtypes.InstallUUID(ctx, nil); err != nil {
		t.Fatalf("安装 UUID 失败: %v", err)
	}

	evalScript(t, ctx, `var i64 = new Int64("5"); var uid = new UUID();`)

	// 跨类型调用在接收者检查处按类型错误拒绝
	checks := []struct {
		code string
		want string
	}{
		{`(function () { try { i64.toString.call(uid); return "ok"; } catch (e) { return e instanceof TypeError ? "TypeError" : "Error"; } })()`, "TypeError"},
		{`(function () { try { uid.version.call(i64); return "ok"; } catch (e) { return e instanceof TypeError ? "TypeError" : "Error"; } })()`, "TypeError"},
		{`i64.toString()`, "5"},
		{`String(uid.version() === 4)`, "true"},
	}
	for _, tc := range checks {
		if got := evalScript(t, ctx, tc.code).String(); got != tc.want {
			t.Fatalf("%s = %s, 期望 %s", tc.code, got, tc.want)
		}
	}
}
