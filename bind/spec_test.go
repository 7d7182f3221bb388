package bind_test

import (
	"testing"

	"jsbind-core/bind"
	"jsbind-core/jsvm"
)

func noopMethod(ctx jsvm.Context, recv bind.Receiver, call jsvm.Call) (jsvm.Value, error) {
	return nil, nil
}

func noopFunc(ctx jsvm.Context, call jsvm.Call) (jsvm.Value, error) {
	return nil, nil
}

func TestTypeSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		spec *bind.TypeSpec
		ok   bool
	}{
		{
			name: "合法的全局类型",
			spec: &bind.TypeSpec{
				Name:    "Widget",
				Mode:    bind.InstallGlobal,
				Flags:   bind.ClassHasPrivate,
				Methods: []bind.MethodSpec{{Name: "poke", Fn: noopMethod}},
				Funcs:   []bind.FuncSpec{{Name: "make", Fn: noopFunc}},
			},
			ok: true,
		},
		{
			name: "空类型名",
			spec: &bind.TypeSpec{Mode: bind.InstallGlobal},
		},
		{
			name: "未知安装方式",
			spec: &bind.TypeSpec{Name: "X", Mode: bind.InstallMode(99)},
		},
		{
			name: "附加模式声明构造钩子",
			spec: &bind.TypeSpec{Name: "X", Mode: bind.InstallAttach, Construct: noopMethod},
		},
		{
			name: "附加模式声明终结钩子",
			spec: &bind.TypeSpec{Name: "X", Mode: bind.InstallAttach, Finalize: func(any) {}},
		},
		{
			name: "附加模式声明基类型",
			spec: &bind.TypeSpec{Name: "X", Mode: bind.InstallAttach, Base: "Y"},
		},
		{
			name: "附加模式声明私有槽",
			spec: &bind.TypeSpec{Name: "X", Mode: bind.InstallAttach, Flags: bind.ClassHasPrivate},
		},
		{
			name: "附加模式声明类钩子",
			spec: &bind.TypeSpec{
				Name: "X", Mode: bind.InstallAttach,
				Resolve: func(jsvm.Context, jsvm.Object, string) (bool, error) { return false, nil },
			},
		},
		{
			name: "终结钩子缺少私有槽标志",
			spec: &bind.TypeSpec{Name: "X", Mode: bind.InstallGlobal, Finalize: func(any) {}},
		},
		{
			name: "方法名重复",
			spec: &bind.TypeSpec{
				Name: "X", Mode: bind.InstallGlobal,
				Methods: []bind.MethodSpec{{Name: "a", Fn: noopMethod}, {Name: "a", Fn: noopMethod}},
			},
		},
		{
			name: "自由函数名重复",
			spec: &bind.TypeSpec{
				Name: "X", Mode: bind.InstallGlobal,
				Funcs: []bind.FuncSpec{{Name: "f", Fn: noopFunc}, {Name: "f", Fn: noopFunc}},
			},
		},
		{
			name: "方法缺少函数体",
			spec: &bind.TypeSpec{
				Name: "X", Mode: bind.InstallGlobal,
				Methods: []bind.MethodSpec{{Name: "a"}},
			},
		},
		{
			name: "自由函数缺少函数体",
			spec: &bind.TypeSpec{
				Name: "X", Mode: bind.InstallGlobal,
				Funcs: []bind.FuncSpec{{Name: "f"}},
			},
		},
	}
	for _, tc := range cases {
		err := tc.spec.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: 校验应通过, got %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%s: 校验应失败", tc.name)
			}
			if bind.KindOf(err) != bind.ErrInvalidSpec {
				t.Fatalf("%s: 错误分类不正确: %v", tc.name, err)
			}
		}
	}
}

func TestInstallModeString(t *testing.T) {
	if bind.InstallGlobal.String() != "global" ||
		bind.InstallPrivate.String() != "private" ||
		bind.InstallAttach.String() != "attach" {
		t.Fatal("安装方式字符串表示错误")
	}
}

func TestClassFlagsHas(t *testing.T) {
	var f bind.ClassFlags
	if f.Has(bind.ClassHasPrivate) {
		t.Fatal("空位集不应包含标志")
	}
	f = bind.ClassHasPrivate
	if !f.Has(bind.ClassHasPrivate) {
		t.Fatal("位集应包含已设置的标志")
	}
}
