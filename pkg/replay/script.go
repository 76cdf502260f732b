// Package replay runs scripted input sequences against a session. Scripts
// are YAML documents listing raw input events, frame ticks, immersive
// session changes and expectations about the resulting state.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrBadStep is returned for steps that set zero or several actions.
	ErrBadStep = errors.New("invalid replay step")
	// ErrExpectation is returned when an expect step does not hold.
	ErrExpectation = errors.New("expectation failed")
)

// Script is a named list of steps. Viewport, when set, is the pixel size
// click and touch coordinates refer to.
type Script struct {
	Name     string `yaml:"name"`
	Viewport [2]int `yaml:"viewport,omitempty"`
	Steps    []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Click     *[2]float64 `yaml:"click,omitempty"`
	Touch     *Touch      `yaml:"touch,omitempty"`
	Select    *Select     `yaml:"select,omitempty"`
	Pose      *Pose       `yaml:"pose,omitempty"`
	Frames    int         `yaml:"frames,omitempty"`
	Immersive string      `yaml:"immersive,omitempty"`
	Expect    *Expect     `yaml:"expect,omitempty"`
}

// Touch is a touch event: Phase is start, move or end and Points lists the
// touches active after the change.
type Touch struct {
	Phase  string       `yaml:"phase"`
	Points [][2]float64 `yaml:"points"`
}

// Pose places a controller grip at Position pointing at Aim. Without Aim
// the controller points down -Z.
type Pose struct {
	Controller int         `yaml:"controller"`
	Position   [3]float64  `yaml:"position"`
	Aim        *[3]float64 `yaml:"aim,omitempty"`
}

// Select is a trigger press (start) or release (end) at a pose.
type Select struct {
	Pose  `yaml:",inline"`
	Phase string `yaml:"phase"`
}

// Expect checks session state. Unset fields are not checked.
type Expect struct {
	Color     string      `yaml:"color,omitempty"`
	State     string      `yaml:"state,omitempty"`
	Toggled   *[]string   `yaml:"toggled,omitempty"`
	Position  *[3]float64 `yaml:"position,omitempty"`
	Scale     *[3]float64 `yaml:"scale,omitempty"`
	Yaw       *float64    `yaml:"yaw,omitempty"`
	Tolerance float64     `yaml:"tolerance,omitempty"`
}

// Kind names the action a step performs.
func (s Step) Kind() string {
	var kinds []string
	if s.Click != nil {
		kinds = append(kinds, "click")
	}
	if s.Touch != nil {
		kinds = append(kinds, "touch")
	}
	if s.Select != nil {
		kinds = append(kinds, "select")
	}
	if s.Pose != nil {
		kinds = append(kinds, "pose")
	}
	if s.Frames > 0 {
		kinds = append(kinds, "frames")
	}
	if s.Immersive != "" {
		kinds = append(kinds, "immersive")
	}
	if s.Expect != nil {
		kinds = append(kinds, "expect")
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) validate() error {
	switch s.Kind() {
	case "":
		return fmt.Errorf("%w: exactly one action required", ErrBadStep)
	case "touch":
		switch s.Touch.Phase {
		case "start", "move", "end":
		default:
			return fmt.Errorf("%w: touch phase %q", ErrBadStep, s.Touch.Phase)
		}
	case "select":
		if s.Select.Phase != "start" && s.Select.Phase != "end" {
			return fmt.Errorf("%w: select phase %q", ErrBadStep, s.Select.Phase)
		}
	case "immersive":
		if s.Immersive != "enter" && s.Immersive != "exit" {
			return fmt.Errorf("%w: immersive %q", ErrBadStep, s.Immersive)
		}
	}
	return nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a script from r.
func Decode(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
