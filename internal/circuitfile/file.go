// Package circuitfile loads circuits written in YAML and builds them into operations.
//
// A file names its qubits, may declare reusable definitions, and lists steps:
//
//	name: bell
//	qubits: [a, b]
//	steps:
//	  - op: H
//	    on: [a]
//	  - op: X
//	    control: [a]
//	    on: [b]
//
// The whole file becomes one custom operation whose parameters are the qubits.
// Definitions become custom operations too and may use earlier definitions.
package circuitfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is a parsed circuit file.
type File struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Qubits      []string     `yaml:"qubits"`
	Definitions []Definition `yaml:"definitions"`
	Steps       []Step       `yaml:"steps"`
}

// Definition is a named sub-circuit over its own parameters.
type Definition struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Steps  []Step   `yaml:"steps"`
}

// Step applies one operation.
type Step struct {
	Op      string   `yaml:"op"`
	On      []string `yaml:"on"`
	Control []string `yaml:"control"`
	Theta   *float64 `yaml:"theta"`
	// Repeat runs the step several times; 0 means once.
	Repeat int `yaml:"repeat"`
}

// Times returns how often the step runs.
func (s Step) Times() int {
	return max(s.Repeat, 1)
}

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid circuit file")

// Parse decodes and validates a circuit file. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the circuit file at path.
func Load(filePath string) (*File, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: user-selected circuit file
	if err != nil {
		return nil, fmt.Errorf("reading circuit file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return f, nil
}

// LoadBuiltin returns the example circuits embedded in the binary, sorted by name.
func LoadBuiltin() ([]*File, error) {
	entries, err := fs.ReadDir(builtinCircuits, "circuits")
	if err != nil {
		return nil, fmt.Errorf("reading builtin circuits: %w", err)
	}
	var files []*File
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		// Use path.Join (not filepath.Join) for embedded filesystems which always use forward slashes
		data, err := fs.ReadFile(builtinCircuits, path.Join("circuits", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading builtin circuit %s: %w", entry.Name(), err)
		}
		f, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("builtin circuit %s: %w", entry.Name(), err)
		}
		files = append(files, f)
	}
	slices.SortFunc(files, func(a, b *File) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

// Resolve loads target as a file path, or as the name of a builtin circuit when no
// such file exists.
func Resolve(target string) (*File, error) {
	if _, err := os.Stat(target); err == nil {
		return Load(target)
	}
	builtins, err := LoadBuiltin()
	if err != nil {
		return nil, err
	}
	for _, f := range builtins {
		if f.Name == target {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%q is neither a circuit file nor a builtin circuit", target)
}

// Validate checks names, scopes and step fields.
func (f *File) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(f.Qubits) == 0 {
		return fmt.Errorf("%w: at least one qubit is required", ErrInvalid)
	}
	if err := uniqueNames("qubit", f.Qubits); err != nil {
		return err
	}

	known := make(map[string]bool)
	for i, d := range f.Definitions {
		where := fmt.Sprintf("definition %d", i)
		if d.Name == "" {
			return fmt.Errorf("%w: %s: name is required", ErrInvalid, where)
		}
		if isBuiltinOp(d.Name) {
			return fmt.Errorf("%w: %s: %q shadows a builtin operation", ErrInvalid, where, d.Name)
		}
		if known[d.Name] {
			return fmt.Errorf("%w: %s: duplicate definition %q", ErrInvalid, where, d.Name)
		}
		if err := uniqueNames("parameter", d.Params); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if err := validateSteps(d.Steps, d.Params, known); err != nil {
			return fmt.Errorf("%s (%s): %w", where, d.Name, err)
		}
		known[d.Name] = true
	}
	return validateSteps(f.Steps, f.Qubits, known)
}

func uniqueNames(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("%w: empty %s name", ErrInvalid, kind)
		}
		if seen[n] {
			return fmt.Errorf("%w: duplicate %s %q", ErrInvalid, kind, n)
		}
		seen[n] = true
	}
	return nil
}

func validateSteps(steps []Step, scope []string, defs map[string]bool) error {
	for i, s := range steps {
		if err := s.validate(scope, defs); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (s Step) validate(scope []string, defs map[string]bool) error {
	switch {
	case s.Op == "":
		return fmt.Errorf("%w: op is required", ErrInvalid)
	case !isBuiltinOp(s.Op) && !defs[s.Op]:
		return fmt.Errorf("%w: unknown op %q", ErrInvalid, s.Op)
	case len(s.On) == 0:
		return fmt.Errorf("%w: %s needs at least one target in 'on'", ErrInvalid, s.Op)
	case s.Repeat < 0:
		return fmt.Errorf("%w: repeat must not be negative", ErrInvalid)
	case isRotation(s.Op) && s.Theta == nil:
		return fmt.Errorf("%w: %s needs theta", ErrInvalid, s.Op)
	case !isRotation(s.Op) && s.Theta != nil:
		return fmt.Errorf("%w: %s takes no theta", ErrInvalid, s.Op)
	case len(s.Control) > 0 && s.Op == "M":
		return fmt.Errorf("%w: measurements cannot be controlled", ErrInvalid)
	}
	used := make(map[string]bool)
	for _, q := range slices.Concat(s.Control, s.On) {
		if !slices.Contains(scope, q) {
			return fmt.Errorf("%w: %q is not in scope %v", ErrInvalid, q, scope)
		}
		if used[q] {
			return fmt.Errorf("%w: %q is used twice in one step", ErrInvalid, q)
		}
		used[q] = true
	}
	return nil
}
