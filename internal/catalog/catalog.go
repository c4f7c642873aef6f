// Package catalog reads and writes packages.toml, the declarative list of
// folders and packages a build graph is organized into, and reconciles a
// store with it through refactoring intents.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultPath is the conventional location of the package catalog.
const DefaultPath = "packages.toml"

// ErrInvalid is returned for catalogs that cannot be applied as written.
var ErrInvalid = errors.New("invalid catalog")

// Catalog is the parsed form of packages.toml.
type Catalog struct {
	Folders  []Folder  `toml:"folder"`
	Packages []Package `toml:"package"`
}

// Folder declares a folder. Parent names another folder; empty means the
// root folder. Parents must be declared before their children.
type Folder struct {
	Name   string `toml:"name"`
	Parent string `toml:"parent,omitempty"`
}

// Package declares a package, the folder holding it and its root
// directories. Empty roots mean the filesystem root.
type Package struct {
	Name          string `toml:"name"`
	Folder        string `toml:"folder,omitempty"`
	SourceRoot    string `toml:"source_root,omitempty"`
	GeneratedRoot string `toml:"generated_root,omitempty"`
}

// Load reads a catalog from path. A missing file yields an empty catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c to path, creating parent directories as needed.
func Save(path string, c *Catalog) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Validate checks that every entry is named and no name is declared twice.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Folders)+len(c.Packages))
	check := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("catalog: %s without a name: %w", kind, ErrInvalid)
		}
		if seen[name] {
			return fmt.Errorf("catalog: %q declared twice: %w", name, ErrInvalid)
		}
		seen[name] = true
		return nil
	}
	for _, f := range c.Folders {
		if err := check("folder", f.Name); err != nil {
			return err
		}
	}
	for _, p := range c.Packages {
		if err := check("package", p.Name); err != nil {
			return err
		}
	}
	return nil
}
