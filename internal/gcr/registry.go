// Public domain.

package gcr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSubclass is returned for a catalog config naming a reader
// subclass that is not registered.
var ErrUnknownSubclass = errors.New("unknown catalog subclass")

// Config is a catalog configuration as read from <name>.yaml.
type Config struct {
	SubclassName    string         `yaml:"subclass_name"`
	Description     string         `yaml:"description,omitempty"`
	CatalogRootDir  string         `yaml:"catalog_root_dir,omitempty"`
	FilenamePattern string         `yaml:"filename_pattern,omitempty"`
	Cosmology       Cosmology      `yaml:"cosmology,omitempty"`
	Catalogs        []MemberConfig `yaml:"catalogs,omitempty"`
}

// MemberConfig is a member of a composite catalog.  A member without a
// subclass name is loaded from the registry by catalog name.
type MemberConfig struct {
	CatalogName string `yaml:"catalog_name"`
	Config      `yaml:",inline"`
}

// Factory builds the source of a catalog from its config.
type Factory func(r *Registry, cfg Config) (Source, error)

// Registry loads catalogs by name from a directory of YAML configs.
type Registry struct {
	Dir string
	// RootDir resolves relative catalog_root_dir values.  Empty means Dir.
	RootDir   string
	factories map[string]Factory
}

// NewRegistry returns a registry over dir with the FITS healpixel and
// composite readers registered.
func NewRegistry(dir string) *Registry {
	r := &Registry{Dir: dir, factories: map[string]Factory{}}
	r.Register(FITSSubclass, fitsFactory)
	r.Register(CompositeSubclass, compositeFactory)
	return r
}

// Register adds or replaces the factory for subclass.
func (r *Registry) Register(subclass string, f Factory) {
	r.factories[subclass] = f
}

// Available lists the catalog names with a config in Dir.
func (r *Registry) Available() ([]string, error) {
	m, err := filepath.Glob(filepath.Join(r.Dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(m))
	for i, p := range m {
		names[i] = filepath.Base(p[:len(p)-len(".yaml")])
	}
	sort.Strings(names)
	return names, nil
}

const maxInclude = 8

func (r *Registry) readMap(name string, depth int) (map[string]interface{}, error) {
	if depth > maxInclude {
		return nil, fmt.Errorf("catalog %s: include depth exceeds %d", name, maxInclude)
	}
	b, err := os.ReadFile(filepath.Join(r.Dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	m := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	inc, ok := m["include"].(string)
	if !ok {
		return m, nil
	}
	base, err := r.readMap(inc, depth+1)
	if err != nil {
		return nil, err
	}
	delete(m, "include")
	for k, v := range m {
		base[k] = v
	}
	return base, nil
}

// LoadConfig reads the config of catalog name, following include, and
// applies overwrite on top.
func (r *Registry) LoadConfig(name string, overwrite map[string]interface{}) (Config, error) {
	m, err := r.readMap(name, 0)
	if err != nil {
		return Config{}, err
	}
	for k, v := range overwrite {
		m[k] = v
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("catalog %s: %w", name, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("catalog %s: %w", name, err)
	}
	return cfg, nil
}

// LoadCatalog loads catalog name.
func (r *Registry) LoadCatalog(name string, overwrite map[string]interface{}) (*Reader, error) {
	cfg, err := r.LoadConfig(name, overwrite)
	if err != nil {
		return nil, err
	}
	src, err := r.source(cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	info := Info{SubclassName: cfg.SubclassName, Cosmology: cfg.Cosmology}
	for _, m := range cfg.Catalogs {
		info.Catalogs = append(info.Catalogs, MemberInfo{CatalogName: m.CatalogName})
	}
	return NewReader(name, info, src), nil
}

func (r *Registry) source(cfg Config) (Source, error) {
	f, ok := r.factories[cfg.SubclassName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubclass, cfg.SubclassName)
	}
	return f(r, cfg)
}

func fitsFactory(r *Registry, cfg Config) (Source, error) {
	dir := cfg.CatalogRootDir
	if !filepath.IsAbs(dir) {
		root := r.RootDir
		if root == "" {
			root = r.Dir
		}
		dir = filepath.Join(root, dir)
	}
	pat := cfg.FilenamePattern
	if pat == "" {
		pat = `\.fits$`
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("filename_pattern: %w", err)
	}
	return NewFITSSource(dir, re)
}

func compositeFactory(r *Registry, cfg Config) (Source, error) {
	if len(cfg.Catalogs) == 0 {
		return nil, errors.New("composite catalog has no members")
	}
	c := make(Composite, len(cfg.Catalogs))
	for i, m := range cfg.Catalogs {
		mc := m.Config
		if mc.SubclassName == "" {
			var err error
			if mc, err = r.LoadConfig(m.CatalogName, nil); err != nil {
				return nil, err
			}
		}
		s, err := r.source(mc)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.CatalogName, err)
		}
		c[i] = s
	}
	return c, nil
}
