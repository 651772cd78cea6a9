package fhir

import (
	"regexp"
	"strings"
)

// Coding system identifiers as stored in the terminology and mapping catalogs.
const (
	SystemNAMASTE          = "NAMASTE"
	SystemICD11TM2         = "ICD-11 TM2"
	SystemICD11Biomedicine = "ICD-11 BIOMEDICINE"
	SystemWHOAyurveda      = "WHO AYURVEDA"
	SystemUnknown          = "Unknown"
)

// DefaultSystemURLBase prefixes URLs derived for systems outside the table.
const DefaultSystemURLBase = "http://terminology.system"

const (
	systemURLNAMASTE     = "http://namaste.gov.in"
	systemURLICD11TM2    = "http://id.who.int/icd/entity/148929940"
	systemURLICD11Biomed = "http://id.who.int/icd/entity/12345"
	systemURLWHOAyurveda = "http://who.int/ayurveda"
)

// SystemRegistry translates between coding-system URLs carried in FHIR
// codings and the short identifiers the catalogs are keyed by.
type SystemRegistry interface {
	IdentifierForURL(systemURL string) string
	URLForIdentifier(system string) string
}

// StaticSystemRegistry resolves systems from a fixed table and derives
// identifiers/URLs for anything outside it. Derived values are a heuristic,
// not a registry: two different URLs can derive the same identifier.
type StaticSystemRegistry struct {
	byURL   map[string]string
	byID    map[string]string
	urlBase string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NewStaticSystemRegistry builds a registry from identifier -> URL pairs.
func NewStaticSystemRegistry(urls map[string]string, urlBase string) *StaticSystemRegistry {
	r := &StaticSystemRegistry{
		byURL:   make(map[string]string, len(urls)),
		byID:    make(map[string]string, len(urls)),
		urlBase: strings.TrimRight(urlBase, "/"),
	}
	for id, u := range urls {
		r.byURL[u] = id
		r.byID[strings.ToUpper(id)] = u
	}
	return r
}

// DefaultSystemRegistry returns the registry of the vocabularies this portal
// exchanges with EMRs.
func DefaultSystemRegistry() *StaticSystemRegistry {
	return NewStaticSystemRegistry(map[string]string{
		SystemNAMASTE:          systemURLNAMASTE,
		SystemICD11TM2:         systemURLICD11TM2,
		SystemICD11Biomedicine: systemURLICD11Biomed,
		SystemWHOAyurveda:      systemURLWHOAyurveda,
	}, DefaultSystemURLBase)
}

// IdentifierForURL maps a coding system URL to a catalog identifier. URLs
// outside the table fall back to their last path segment, upper-cased, with
// dashes turned into spaces ("http://x/icd-11-tm2" -> "ICD 11 TM2").
func (r *StaticSystemRegistry) IdentifierForURL(systemURL string) string {
	if id, ok := r.byURL[systemURL]; ok {
		return id
	}
	trimmed := strings.TrimRight(systemURL, "/")
	if trimmed == "" {
		return ""
	}
	segment := trimmed[strings.LastIndex(trimmed, "/")+1:]
	return strings.ReplaceAll(strings.ToUpper(segment), "-", " ")
}

// URLForIdentifier maps a catalog identifier to a system URL. Table lookups
// ignore case so "ICD-11 Biomedicine" and "ICD-11 BIOMEDICINE" agree.
// Unknown identifiers become <base>/<lower-case-with-dashes>.
func (r *StaticSystemRegistry) URLForIdentifier(system string) string {
	if u, ok := r.byID[strings.ToUpper(system)]; ok {
		return u
	}
	slug := whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(system)), "-")
	return r.urlBase + "/" + slug
}
