package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultServer is the control plane address used when nothing is set.
const DefaultServer = "localhost:8000"

// Profile is one saved control plane endpoint.
type Profile struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// File is the on-disk profile set.
type File struct {
	Current  string             `yaml:"current,omitempty"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// DefaultPath returns ~/.ringchat/admin.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ringchat", "admin.yaml")
	}
	return filepath.Join(home, ".ringchat", "admin.yaml")
}

// Load reads the profile file. A missing file is an empty set.
func Load(path string) (*File, error) {
	if path == "" {
		path = DefaultPath()
	}
	f := &File{Profiles: make(map[string]Profile)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Profiles == nil {
		f.Profiles = make(map[string]Profile)
	}
	return f, nil
}

// Save writes the profile file, creating its directory.
func Save(f *File, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Active returns the current profile, or a default one.
func (f *File) Active() Profile {
	if p, ok := f.Profiles[f.Current]; ok {
		return p
	}
	return Profile{Server: DefaultServer}
}

// Use stores p under name and makes it current.
func (f *File) Use(name string, p Profile) {
	if f.Profiles == nil {
		f.Profiles = make(map[string]Profile)
	}
	f.Profiles[name] = p
	f.Current = name
}

// Names returns the profile names in order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for n := range f.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
