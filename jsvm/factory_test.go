package jsvm_test

import (
	"testing"

	"jsbind-core/jsvm"
	_ "jsbind-core/jsvm/memvm"
)

func TestNewFactoryMem(t *testing.T) {
	ctx, err := jsvm.New(jsvm.Config{Name: jsvm.BackendMem})
	if err != nil {
		t.Fatalf("创建 mem 上下文失败: %v", err)
	}
	if ctx == nil {
		t.Fatal("创建 mem 上下文返回 nil")
	}
	if ctx.Name() != jsvm.BackendMem {
		t.Fatalf("后端类型错误: got=%s want=%s", ctx.Name(), jsvm.BackendMem)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("关闭上下文失败: %v", err)
	}
}

func TestNewFactoryUnsupportedBackend(t *testing.T) {
	ctx, err := jsvm.New(jsvm.Config{Name: "v8"})
	if err == nil {
		t.Fatal("不支持的后端类型应返回错误")
	}
	if ctx != nil {
		t.Fatal("不支持的后端类型不应返回实例")
	}

	ve, ok := err.(*jsvm.VMError)
	if !ok {
		t.Fatalf("错误类型不正确: %T", err)
	}
	if ve.Kind != jsvm.ErrInit {
		t.Fatalf("错误分类不正确: got=%s want=%s", ve.Kind, jsvm.ErrInit)
	}
}

func TestRegisteredContainsMem(t *testing.T) {
	names := jsvm.Registered()
	for _, n := range names {
		if n == jsvm.BackendMem {
			return
		}
	}
	t.Fatalf("已注册后端列表缺少 mem: %v", names)
}
