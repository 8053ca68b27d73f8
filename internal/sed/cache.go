// Public domain.

package sed

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Cache holds rest frame SEDs from a library directory, with and without
// dust, so that each file is read and each dust law applied once.
type Cache struct {
	Dir string

	mu    sync.Mutex
	base  map[string]*Spectrum
	dusty map[string]*dusted
}

// maxDusty bounds the dusted SEDs held.  When full the cache starts over.
const maxDusty = 4096

type dusted struct {
	spec     *Spectrum
	imsimMag float64 // of the dust free spectrum
}

// NewCache returns a cache of SEDs under dir.
func NewCache(dir string) *Cache {
	return &Cache{Dir: dir, base: map[string]*Spectrum{}, dusty: map[string]*dusted{}}
}

// Rest returns SED name as read.  The result is shared and must not be
// modified.
func (c *Cache) Rest(name string) (*Spectrum, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spectrum(name)
}

func (c *Cache) spectrum(name string) (*Spectrum, error) {
	if s, ok := c.base[name]; ok {
		return s, nil
	}
	s, err := ReadFlambda(filepath.Join(c.Dir, name))
	if err != nil {
		return nil, err
	}
	s.Name = name
	c.base[name] = s
	return s, nil
}

func (c *Cache) dust(name string, av, rv float64) (*dusted, error) {
	key := fmt.Sprintf("%s_%.2f_%.2f", name, av, rv)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.dusty[key]; ok {
		return d, nil
	}
	s, err := c.spectrum(name)
	if err != nil {
		return nil, err
	}
	d := &dusted{spec: s.Copy(), imsimMag: s.CalcMag(imsimBandpass)}
	a, b := SetupCCMab(s.Wavelen)
	if err := d.spec.AddDust(a, b, av, rv); err != nil {
		return nil, err
	}
	if len(c.dusty) >= maxDusty {
		c.dusty = map[string]*dusted{}
	}
	c.dusty[key] = d
	return d, nil
}

// Get returns SED name normalized to magNorm in the imsim bandpass before
// dust, attenuated by av and rv, and redshifted to z with dimming.  The
// result is a copy the caller may modify.
func (c *Cache) Get(name string, magNorm, z, av, rv float64) (*Spectrum, error) {
	d, err := c.dust(name, av, rv)
	if err != nil {
		return nil, err
	}
	s := d.spec.Copy()
	s.MultiplyFluxNorm(fluxNorm(d.imsimMag, magNorm))
	s.RedshiftSED(z, true)
	return s, nil
}

// Len returns the number of dusted SEDs held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dusty)
}
