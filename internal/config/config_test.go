package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/motionlab/internal/control"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Tracker.Period != 10*time.Millisecond {
		t.Errorf("expected tracker period 10ms, got %v", cfg.Tracker.Period)
	}
	if cfg.Motion.NearThreshold != 5 || cfg.Motion.NearMaxSpeed != 0.6 {
		t.Errorf("unexpected near settings %+v", cfg.Motion.MoveToPointParameters)
	}
	if !cfg.Motion.Forwards {
		t.Error("default motion should drive forwards")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %s missing", name)
		}
		if cfg.Name != name {
			t.Errorf("preset %s named %s", name, cfg.Name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestGetPresetReturnsCopies(t *testing.T) {
	a := GetPreset("straight")
	a.Steps[0].X = -1
	if b := GetPreset("straight"); b.Steps[0].X == -1 {
		t.Error("presets share state between calls")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresetsSorted(t *testing.T) {
	want := []string{"dropout", "reverse", "square", "straight", "two-imus"}
	if diff := cmp.Diff(want, ListPresets()); diff != "" {
		t.Errorf("presets mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot.yaml")
	cfg := GetPreset("dropout")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot.yml")
	data := `
name: custom
tracker:
  period: 20ms
linear:
  kp: 0.5
  windup_range: 3
motion:
  max_linear_speed: 0.8
  early_exit_range: 1.5
tolerances:
  - band: 0.5
    duration: 100ms
    samples: 2
steps:
  - kind: relative
    distance: -12
    timeout: 3s
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Tracker.Period != 20*time.Millisecond {
		t.Errorf("expected period 20ms, got %v", cfg.Tracker.Period)
	}
	if cfg.Tracker.IMUWeight != 1 {
		t.Errorf("expected default imu weight kept, got %f", cfg.Tracker.IMUWeight)
	}
	if cfg.Linear.Kp != 0.5 || cfg.Linear.WindupRange != 3 {
		t.Errorf("unexpected linear gains %+v", cfg.Linear)
	}
	if cfg.Motion.MaxLinearSpeed != 0.8 || cfg.Motion.EarlyExitRange != 1.5 {
		t.Errorf("unexpected motion %+v", cfg.Motion)
	}
	if cfg.Motion.NearThreshold != 5 {
		t.Errorf("expected default near threshold kept, got %f", cfg.Motion.NearThreshold)
	}
	want := []control.Tolerance{{Band: 0.5, Duration: 100 * time.Millisecond, Samples: 2}}
	if diff := cmp.Diff(want, cfg.Tolerances); diff != "" {
		t.Errorf("tolerances mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Steps) != 1 || cfg.Steps[0].Distance != -12 || cfg.Steps[0].Timeout != 3*time.Second {
		t.Errorf("unexpected steps %+v", cfg.Steps)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot.toml")
	data := `
name = "toml"

[tracker]
vertical_weight = 2.0

[[tracker.verticals]]
offset = -4.0

[[tracker.verticals]]
offset = 4.0

[angular]
kp = 1.2
reset_on_sign_flip = true

[plant]
track_width = 14.0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "toml" {
		t.Errorf("expected name toml, got %s", cfg.Name)
	}
	if cfg.Tracker.VerticalWeight != 2 || len(cfg.Tracker.Verticals) != 2 || cfg.Tracker.Verticals[1].Offset != 4 {
		t.Errorf("unexpected tracker %+v", cfg.Tracker)
	}
	if cfg.Angular.Kp != 1.2 || !cfg.Angular.ResetOnSignFlip {
		t.Errorf("unexpected angular %+v", cfg.Angular)
	}
	if cfg.Plant.TrackWidth != 14 || cfg.Plant.MaxSpeed != DefaultMaxSpeed {
		t.Errorf("unexpected plant %+v", cfg.Plant)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracker.Period = 0
	cfg.Tracker.Verticals = []WheelConfig{{Offset: 3}, {Offset: 3}}
	cfg.Linear.WindupRange = -1
	cfg.Motion.MinLinearSpeed = 0.9
	cfg.Motion.MaxLinearSpeed = 0.5
	cfg.Steps = append(cfg.Steps, Step{Kind: "teleport"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{
		"tracker.period",
		"share offset",
		"linear.windup_range",
		"min_linear_speed",
		"unknown kind \"teleport\"",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestStepParams(t *testing.T) {
	defaults := DefaultConfig().Motion.MoveToPointParameters
	step := Step{Kind: StepPoint, Backwards: true, MaxSpeed: Float(0.4), LinearSlew: Float(0.1)}

	p := step.PointParams(defaults)
	if p.Forwards || p.MaxLinearSpeed != 0.4 || p.LinearSlew != 0.1 {
		t.Errorf("unexpected params %+v", p)
	}
	if p.MaxAngularSpeed != defaults.MaxAngularSpeed || p.NearThreshold != defaults.NearThreshold {
		t.Errorf("defaults not carried over: %+v", p)
	}

	r := step.RelativeParams(defaults)
	if r.MaxLinearSpeed != 0.4 || r.LinearSlew != 0.1 {
		t.Errorf("unexpected relative params %+v", r)
	}
}

func TestStepZeroOverrides(t *testing.T) {
	defaults := DefaultConfig().Motion.MoveToPointParameters
	defaults.EarlyExitRange = 2
	defaults.MinLinearSpeed = 0.2
	defaults.LinearSlew = 0.1

	var steps []Step
	err := yaml.Unmarshal([]byte(`
- kind: point
  x: 10
  early_exit: 0
  min_speed: 0
  linear_slew: 0
- kind: point
  x: 10
`), &steps)
	if err != nil {
		t.Fatal(err)
	}

	zeroed := steps[0].PointParams(defaults)
	if zeroed.EarlyExitRange != 0 || zeroed.MinLinearSpeed != 0 || zeroed.LinearSlew != 0 {
		t.Errorf("explicit zeros not applied: %+v", zeroed)
	}
	inherited := steps[1].PointParams(defaults)
	if inherited.EarlyExitRange != 2 || inherited.MinLinearSpeed != 0.2 || inherited.LinearSlew != 0.1 {
		t.Errorf("defaults not inherited: %+v", inherited)
	}

	cfg := DefaultConfig()
	cfg.Steps = []Step{{Kind: StepPoint, X: 1, MaxSpeed: Float(1.5)}}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected invalid config for max_speed 1.5, got %v", err)
	}
	cfg.Steps = []Step{{Kind: StepPoint, X: 1, MaxSpeed: Float(0.5), EarlyExit: Float(0)}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("explicit zero early exit rejected: %v", err)
	}
}

func TestPIDConfigBuild(t *testing.T) {
	ctrl, err := PIDConfig{Kp: 2}.Build()
	if err != nil {
		t.Fatal(err)
	}
	if got := ctrl.Update(1.5); got != 3 {
		t.Errorf("expected 3, got %f", got)
	}
	if _, err := (PIDConfig{Kind: "lqr"}).Build(); !errors.Is(err, control.ErrUnknownController) {
		t.Errorf("expected unknown controller, got %v", err)
	}
}

func TestSetGain(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.SetGain("linear.kp", 0.3); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetGain("angular.windup_range", 2); err != nil {
		t.Fatal(err)
	}
	if cfg.Linear.Kp != 0.3 || cfg.Angular.WindupRange != 2 {
		t.Errorf("gains not applied: %+v %+v", cfg.Linear, cfg.Angular)
	}
	for _, name := range []string{"kp", "lateral.kp", "linear.kf"} {
		if err := cfg.SetGain(name, 1); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}
