// ABOUTME: Tests for plugin state transitions and hook execution.
// ABOUTME: Validates the on-disk encoding, callbacks, toggling and missing-hook results.

package core

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBindDefaults(t *testing.T) {
	p := Bind(&testPlugin{}, "FooPlugin", "/plugins/FooPlugin.yaml")

	if p.ID() != "FooPlugin" {
		t.Errorf("ID() = %q, want %q", p.ID(), "FooPlugin")
	}
	if got := p.Attribute("version"); got != DefaultVersion {
		t.Errorf("version = %v, want %v", got, DefaultVersion)
	}
	if got := p.Attribute("name"); got != "FooPlugin" {
		t.Errorf("name = %v, want FooPlugin", got)
	}
	if p.Location() != "/plugins/FooPlugin.yaml" {
		t.Errorf("Location() = %q", p.Location())
	}
}

func TestBindKeepsDeclaredMetadata(t *testing.T) {
	p := Bind(&testPlugin{Base: Base{Name: "foo", Version: "v2.3"}}, "FooPlugin", "")

	if got := p.Attribute("name"); got != "foo" {
		t.Errorf("name = %v, want foo", got)
	}
	if got := p.Attribute("version"); got != "v2.3" {
		t.Errorf("version = %v, want v2.3", got)
	}
}

func TestIsEnabled(t *testing.T) {
	dir := t.TempDir()

	enabled := newBoundPlugin(t, &testPlugin{}, dir, "FooPlugin", true)
	disabled := newBoundPlugin(t, &testPlugin{}, dir, "BarPlugin", false)

	if !enabled.IsEnabled() || enabled.IsDisabled() {
		t.Error("expected FooPlugin to be enabled")
	}
	if disabled.IsEnabled() || !disabled.IsDisabled() {
		t.Error("expected BarPlugin to be disabled")
	}
}

func TestIsEnabledWithoutLocation(t *testing.T) {
	p := Bind(&testPlugin{}, "FooPlugin", "")
	if p.IsEnabled() {
		t.Error("plugin without a location must be disabled")
	}
}

func TestEnableFromDisabled(t *testing.T) {
	dir := t.TempDir()
	tp := &testPlugin{}
	p := newBoundPlugin(t, tp, dir, "FooPlugin", false)

	if err := p.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	if !p.IsEnabled() {
		t.Error("IsEnabled() = false after Enable()")
	}
	if exists(filepath.Join(dir, "FooPlugin.disabled.yaml")) {
		t.Error("disabled file still exists after Enable()")
	}
	if want := filepath.Join(dir, "FooPlugin.yaml"); p.Location() != want {
		t.Errorf("Location() = %q, want %q", p.Location(), want)
	}
	if tp.enableCalls != 1 {
		t.Errorf("enable callback called %d times, want 1", tp.enableCalls)
	}
}

func TestEnableAlreadyEnabled(t *testing.T) {
	dir := t.TempDir()
	tp := &testPlugin{}
	p := newBoundPlugin(t, tp, dir, "FooPlugin", true)

	if err := p.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	if tp.enableCalls != 1 {
		t.Errorf("enable callback called %d times, want 1", tp.enableCalls)
	}
	if !exists(filepath.Join(dir, "FooPlugin.yaml")) {
		t.Error("enabled file disappeared")
	}
	if exists(filepath.Join(dir, "FooPlugin.disabled.yaml")) {
		t.Error("unexpected disabled file")
	}
}

func TestDisableFromEnabled(t *testing.T) {
	dir := t.TempDir()
	tp := &testPlugin{}
	p := newBoundPlugin(t, tp, dir, "FooPlugin", true)

	if err := p.Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	if p.IsEnabled() {
		t.Error("IsEnabled() = true after Disable()")
	}
	if exists(filepath.Join(dir, "FooPlugin.yaml")) {
		t.Error("enabled file still exists after Disable()")
	}
	if want := filepath.Join(dir, "FooPlugin.disabled.yaml"); p.Location() != want {
		t.Errorf("Location() = %q, want %q", p.Location(), want)
	}
	if tp.disableCalls != 1 {
		t.Errorf("disable callback called %d times, want 1", tp.disableCalls)
	}
}

func TestDisableAlreadyDisabledKeepsLocation(t *testing.T) {
	dir := t.TempDir()
	p := newBoundPlugin(t, &testPlugin{}, dir, "FooPlugin", false)

	if err := p.Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if want := filepath.Join(dir, "FooPlugin.disabled.yaml"); p.Location() != want {
		t.Errorf("Location() = %q, want %q", p.Location(), want)
	}
	if !exists(p.Location()) {
		t.Error("cached location does not exist on disk")
	}
}

func TestToggleIsInvolutive(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
	}{
		{name: "starting enabled", enabled: true},
		{name: "starting disabled", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			p := newBoundPlugin(t, &testPlugin{}, dir, "FooPlugin", tt.enabled)
			original := p.Location()

			if err := p.Toggle(); err != nil {
				t.Fatalf("first Toggle() error = %v", err)
			}
			if p.IsEnabled() == tt.enabled {
				t.Errorf("state unchanged after one Toggle()")
			}
			if !exists(p.Location()) {
				t.Error("cached location does not exist after Toggle()")
			}

			if err := p.Toggle(); err != nil {
				t.Fatalf("second Toggle() error = %v", err)
			}
			if p.IsEnabled() != tt.enabled {
				t.Errorf("IsEnabled() = %v after two toggles, want %v", p.IsEnabled(), tt.enabled)
			}
			if p.Location() != original {
				t.Errorf("Location() = %q, want %q", p.Location(), original)
			}
		})
	}
}

func TestEnableCallbackErrorAbortsTransition(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	p := newBoundPlugin(t, &testPlugin{enableErr: boom}, dir, "FooPlugin", false)

	err := p.Enable()
	if !errors.Is(err, boom) {
		t.Fatalf("Enable() error = %v, want %v", err, boom)
	}
	if p.IsEnabled() {
		t.Error("plugin enabled despite callback error")
	}
	if !exists(filepath.Join(dir, "FooPlugin.disabled.yaml")) {
		t.Error("disabled file was renamed despite callback error")
	}
}

func TestStateChangeWithoutLocation(t *testing.T) {
	p := Bind(&testPlugin{}, "FooPlugin", "")

	if err := p.Enable(); !errors.Is(err, ErrNoLocation) {
		t.Errorf("Enable() error = %v, want ErrNoLocation", err)
	}
	if err := p.Disable(); !errors.Is(err, ErrNoLocation) {
		t.Errorf("Disable() error = %v, want ErrNoLocation", err)
	}
}

func TestEnableMissingFile(t *testing.T) {
	dir := t.TempDir()
	p := Bind(&testPlugin{}, "FooPlugin", filepath.Join(dir, "FooPlugin.disabled.yaml"))

	if err := p.Enable(); err == nil {
		t.Error("Enable() error = nil, want rename failure")
	}
	if want := filepath.Join(dir, "FooPlugin.disabled.yaml"); p.Location() != want {
		t.Errorf("Location() changed to %q after failed Enable()", p.Location())
	}
}

func TestHasHook(t *testing.T) {
	p := Bind(&testPlugin{hooks: Hooks{"onStart": counterHook(new(int))}}, "FooPlugin", "")

	if !p.HasHook("onStart") {
		t.Error("HasHook(onStart) = false, want true")
	}
	if p.HasHook("onStop") {
		t.Error("HasHook(onStop) = true, want false")
	}

	bare := Bind(&bareTestPlugin{}, "BazPlugin", "")
	if bare.HasHook("onStart") {
		t.Error("plugin without HookProvider reported a hook")
	}
}

func TestHookNames(t *testing.T) {
	p := Bind(&testPlugin{hooks: Hooks{
		"onStop":  counterHook(new(int)),
		"onStart": counterHook(new(int)),
		"nilHook": nil,
	}}, "FooPlugin", "")

	want := []string{"onStart", "onStop"}
	if got := p.HookNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("HookNames() = %v, want %v", got, want)
	}
	if got := Bind(&bareTestPlugin{}, "BazPlugin", "").HookNames(); got != nil {
		t.Errorf("HookNames() = %v for a plugin without hooks", got)
	}
}

func TestExecuteHook(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	tp := &testPlugin{hooks: Hooks{"onStart": counterHook(&calls)}}
	p := newBoundPlugin(t, tp, dir, "FooPlugin", true)

	result := p.Execute("onStart", "worker", 3)

	if !result.Success {
		t.Errorf("Success = false, err = %v", result.Err)
	}
	if !result.Enabled {
		t.Error("Enabled = false, want true")
	}
	if result.Plugin != Plugin(tp) {
		t.Error("result does not reference the concrete plugin")
	}
	if result.Hook != "onStart" {
		t.Errorf("Hook = %q, want onStart", result.Hook)
	}
	wantArgs := []any{"worker", 3}
	if !reflect.DeepEqual(result.Args, wantArgs) {
		t.Errorf("Args = %v, want %v", result.Args, wantArgs)
	}
	if !reflect.DeepEqual(result.Return, wantArgs) {
		t.Errorf("Return = %v, want %v", result.Return, wantArgs)
	}
	if calls != 1 {
		t.Errorf("hook called %d times, want 1", calls)
	}
}

func TestExecuteMissingHook(t *testing.T) {
	dir := t.TempDir()
	p := newBoundPlugin(t, &testPlugin{}, dir, "FooPlugin", false)

	result := p.Execute("unknownMethod", 1)

	if result.Success {
		t.Error("Success = true for a missing hook")
	}
	if result.Return != nil {
		t.Errorf("Return = %v, want nil", result.Return)
	}
	if result.Elapsed != 0 {
		t.Errorf("Elapsed = %v, want 0", result.Elapsed)
	}
	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	if result.Enabled {
		t.Error("Enabled = true for a disabled plugin")
	}
}

func TestExecuteHookFailure(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		hook HookFunc
	}{
		{
			name: "hook error",
			hook: func(args ...any) (any, error) { return "partial", boom },
		},
		{
			name: "hook panic",
			hook: func(args ...any) (any, error) { panic("kaboom") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Bind(&testPlugin{hooks: Hooks{"onStart": tt.hook}}, "FooPlugin", "")

			result := p.Execute("onStart")

			if result.Success {
				t.Error("Success = true, want false")
			}
			if result.Err == nil {
				t.Error("Err = nil, want error")
			}
		})
	}
}
