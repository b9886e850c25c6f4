// Package region resolves region aliases to dataset archive locations.
//
// The remote mirror lays archives out by region: the planet archive at the
// root, one archive per continent one level down, and per-country archives
// under their continent. Aliases (country names, ISO 3166-1 alpha-2 codes,
// continent names, "planet") all resolve through a static table.
package region

import (
	"fmt"
	"strings"
)

// Kind describes where in the mirror hierarchy a region's archive lives.
type Kind string

const (
	KindPlanet    Kind = "planet"
	KindContinent Kind = "continent"
	KindCountry   Kind = "country"
)

// dbVersion pins the dataset schema generation encoded in archive names.
const dbVersion = "0.7OS"

// Info describes a resolved region.
type Info struct {
	// Name is the normalized region name used in archive paths.
	Name string
	// Kind is planet, continent, or country.
	Kind Kind
	// Continent is the parent continent for country regions, empty otherwise.
	Continent string
}

// Normalize lowercases an alias and converts spaces and underscores to the
// hyphenated form used in archive paths.
func Normalize(alias string) string {
	s := strings.ToLower(strings.TrimSpace(alias))
	s = strings.ReplaceAll(s, "_", "-")
	return strings.ReplaceAll(s, " ", "-")
}

// Resolve maps an alias to its region Info. An empty alias resolves to the
// planet region.
func Resolve(alias string) (Info, error) {
	if strings.TrimSpace(alias) == "" {
		return Info{Name: "planet", Kind: KindPlanet}, nil
	}

	normalized := Normalize(alias)
	if canonical, ok := isoCodes[normalized]; ok {
		normalized = canonical
	}

	info, ok := regions[normalized]
	if !ok {
		return Info{}, fmt.Errorf("unknown region: %s", alias)
	}
	return info, nil
}

// ArchivePath returns the mirror-relative path of the region's archive,
// e.g. "/europe/monaco/photon-db-monaco-0.7OS-latest.tar.bz2".
func (i Info) ArchivePath() string {
	switch i.Kind {
	case KindPlanet:
		return fmt.Sprintf("/photon-db-planet-%s-latest.tar.bz2", dbVersion)
	case KindContinent:
		return fmt.Sprintf("/%s/photon-db-%s-%s-latest.tar.bz2", i.Name, i.Name, dbVersion)
	default:
		return fmt.Sprintf("/%s/%s/photon-db-%s-%s-latest.tar.bz2", i.Continent, i.Name, i.Name, dbVersion)
	}
}

// ChecksumPath returns the mirror-relative path of the archive's checksum
// sidecar.
func (i Info) ChecksumPath() string {
	return i.ArchivePath() + ".md5"
}

// Source identifies one remote dataset: its archive and checksum URLs as
// derived from the configured mirror and region. It is immutable once built
// and re-derived on every update cycle.
type Source struct {
	BaseURL     string
	Region      Info
	ArchiveURL  string
	ChecksumURL string
}

// NewSource resolves the alias against baseURL and derives the archive and
// checksum URLs.
func NewSource(baseURL, alias string) (*Source, error) {
	info, err := Resolve(alias)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(baseURL, "/")
	return &Source{
		BaseURL:     base,
		Region:      info,
		ArchiveURL:  base + info.ArchivePath(),
		ChecksumURL: base + info.ChecksumPath(),
	}, nil
}

// DirectSource builds a Source around an explicit archive URL, bypassing
// region resolution. The checksum sidecar is assumed to sit beside it.
func DirectSource(archiveURL string) *Source {
	return &Source{
		ArchiveURL:  archiveURL,
		ChecksumURL: archiveURL + ".md5",
	}
}
