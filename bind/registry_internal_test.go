package bind

import (
	"errors"
	"testing"

	"jsbind-core/jsvm"
	"jsbind-core/jsvm/memvm"
)

func newRegistryCtx(t *testing.T) *memvm.Context {
	t.Helper()
	ctx, err := memvm.New(jsvm.Config{Name: jsvm.BackendMem})
	if err != nil {
		t.Fatalf("创建 mem 上下文失败: %v", err)
	}
	return ctx
}

func TestRegistryDropsEntryWhenEmpty(t *testing.T) {
	ctx := newRegistryCtx(t)
	defer func() { _ = ctx.Close() }()

	failing := &TypeSpec{
		Name: "Phantom",
		Mode: InstallPrivate,
		PostInstall: func(jsvm.Context, *Installer) error {
			return errors.New("post install rejected")
		},
	}

	// 仅有的一次安装失败后，进程注册表不保留该上下文的条目
	if _, err := Install(ctx, nil, failing); err == nil {
		t.Fatal("PostInstall 失败时安装应失败")
	}
	if bindingsFor(ctx, false) != nil {
		t.Fatal("失败的安装不应留下上下文条目")
	}

	// 附加目标缺失的早期失败同样不留条目
	if _, err := Install(ctx, nil, &TypeSpec{Name: "nowhere", Mode: InstallAttach}); err == nil {
		t.Fatal("目标缺失时安装应失败")
	}
	if bindingsFor(ctx, false) != nil {
		t.Fatal("失败的安装不应留下上下文条目")
	}

	// 已有安装记录时，失败的安装保留原有条目
	keeper, err := Install(ctx, nil, &TypeSpec{Name: "Keeper", Mode: InstallPrivate})
	if err != nil {
		t.Fatalf("安装失败: %v", err)
	}
	if _, err := Install(ctx, nil, failing); err == nil {
		t.Fatal("PostInstall 失败时安装应失败")
	}
	cb := bindingsFor(ctx, false)
	if cb == nil || cb.lookup("Keeper") != keeper {
		t.Fatal("失败的安装不应影响已有条目")
	}

	// 最后一次卸载连同上下文条目一起移除
	keeper.Uninstall()
	if bindingsFor(ctx, false) != nil {
		t.Fatal("最后一次卸载后不应保留上下文条目")
	}
}
