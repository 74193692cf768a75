package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopParseHooks{}
	p.OnParseStart(ctx, "requirements.txt")
	p.OnParseComplete(ctx, "requirements.txt", 3, 1, time.Second, nil)

	i := NoopInstallHooks{}
	i.OnLockAcquired(ctx, "/venv", time.Millisecond)
	i.OnInstallStart(ctx, "tqdm-4.62.3-py2.py3-none-any.whl", "/venv")
	i.OnInstallComplete(ctx, "tqdm-4.62.3-py2.py3-none-any.whl", "py3-none-any", 12, time.Second, nil)
	i.OnRollback(ctx, "tqdm-4.62.3-py2.py3-none-any.whl", 0, errors.New("boom"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "platform")
	c.OnCacheMiss(ctx, "platform")
	c.OnCacheSet(ctx, "platform", 64)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Parse().(NoopParseHooks); !ok {
		t.Error("Parse() should return NoopParseHooks by default")
	}
	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Install() should return NoopInstallHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	customParse := &testParseHooks{}
	SetParseHooks(customParse)
	if Parse() != customParse {
		t.Error("SetParseHooks should set custom hooks")
	}

	customInstall := &testInstallHooks{}
	SetInstallHooks(customInstall)
	if Install() != customInstall {
		t.Error("SetInstallHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	Reset()
	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Reset() should restore NoopInstallHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testInstallHooks{}
	SetInstallHooks(custom)

	SetInstallHooks(nil)

	if Install() != custom {
		t.Error("SetInstallHooks(nil) should be ignored")
	}

	Reset()
}

type testParseHooks struct{ NoopParseHooks }
type testInstallHooks struct{ NoopInstallHooks }
type testCacheHooks struct{ NoopCacheHooks }
