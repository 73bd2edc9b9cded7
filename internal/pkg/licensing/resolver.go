// Package licensing resolves the license sold with a purchase from whatever
// hints the checkout carried. Resolution is a fixed fallback chain; the
// exclusivity compatibility check happens after resolution so a direct match
// is rejected loudly instead of silently replaced.
package licensing

import (
	"strings"

	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// Catalog is the read access the resolver needs. app/repository's license
// repository satisfies it.
type Catalog interface {
	GetByID(id uint) (*models.License, error)
	GetByName(name string) (*models.License, error)
	GetByLegacyType(legacyType string) (*models.License, error)
	GetDefaultExclusive() (*models.License, error)
	GetOldest() (*models.License, error)
}

// Request carries the license hints attached to a checkout session, all
// optional. Exclusive states whether the purchase locks the beat.
type Request struct {
	LicenseID   uint
	LicenseName string
	LicenseType string
	Exclusive   bool
}

// Resolver picks one catalog row per request.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve walks the fallback chain: explicit id, name, legacy type name,
// then the exclusivity default (priciest exclusive-capable license for
// exclusive sales, the "standard" license otherwise), and finally the oldest
// catalog row. A hint that MATCHES stops the chain; only misses fall
// through. The resolved license must allow the requested exclusivity or
// ErrLicenseIncompatible comes back.
func (r *Resolver) Resolve(req Request) (*models.License, error) {
	license, err := r.lookup(req)
	if err != nil {
		return nil, err
	}

	if req.Exclusive && !license.ExclusiveAllowed {
		return nil, errs.Mark(
			errs.Newf("license %q does not permit exclusive sale", license.Name),
			errs.ErrLicenseIncompatible,
		)
	}
	return license, nil
}

func (r *Resolver) lookup(req Request) (*models.License, error) {
	if req.LicenseID != 0 {
		license, err := r.catalog.GetByID(req.LicenseID)
		if err == nil {
			return license, nil
		}
		if !errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(err, "resolve license by id")
		}
	}

	if name := strings.TrimSpace(req.LicenseName); name != "" {
		license, err := r.catalog.GetByName(name)
		if err == nil {
			return license, nil
		}
		if !errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(err, "resolve license by name")
		}
	}

	if legacy := strings.TrimSpace(req.LicenseType); legacy != "" {
		license, err := r.catalog.GetByLegacyType(legacy)
		if err == nil {
			return license, nil
		}
		if !errs.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(err, "resolve license by legacy type")
		}
	}

	license, err := r.defaultFor(req.Exclusive)
	if err == nil {
		return license, nil
	}
	if !errs.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrap(err, "resolve default license")
	}

	license, err = r.catalog.GetOldest()
	if err != nil {
		return nil, errs.Wrap(err, "resolve fallback license")
	}
	return license, nil
}

func (r *Resolver) defaultFor(exclusive bool) (*models.License, error) {
	if exclusive {
		return r.catalog.GetDefaultExclusive()
	}
	return r.catalog.GetByName(models.LicenseNameStandard)
}
