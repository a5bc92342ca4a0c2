package rest

import (
	"net/http"
	"strings"
)

// Media types negotiated through Accept.
const (
	mediaTypeSingular = "application/vnd.pgrst.object+json"
	mediaTypeCSV      = "text/csv"
)

// parsePrefer parses the Prefer header according to RFC 7240. Preferences are
// comma-separated key=value directives, case-insensitive, optionally quoted.
func parsePrefer(r *http.Request) Prefer {
	p := Prefer{Return: "minimal"}

	header := r.Header.Get("Prefer")
	if header == "" {
		return p
	}

	parseKeyValPairs(header, func(key, value string) {
		switch key {
		case "return":
			if isValidReturn(value) {
				p.Return = value
			}
		case "count":
			if isValidCount(value) {
				p.Count = CountMode(value)
			}
		case "resolution":
			if isValidResolution(value) {
				p.Resolution = value
			}
		}
	})

	return p
}

// parseKeyValPairs parses comma-separated preference directives.
// For each key=value pair found, it calls fn with the key and value.
func parseKeyValPairs(header string, fn func(key, value string)) {
	for pref := range strings.SplitSeq(header, ",") {
		pref = strings.TrimSpace(pref)
		if key, value, found := strings.Cut(pref, "="); found {
			key = strings.TrimSpace(strings.ToLower(key))
			value = strings.ToLower(strings.Trim(strings.TrimSpace(value), `"`))
			fn(key, value)
		}
	}
}

func isValidReturn(s string) bool {
	switch s {
	case "minimal", "representation":
		return true
	}
	return false
}

func isValidCount(s string) bool {
	switch s {
	case "exact", "planned", "estimated":
		return true
	}
	return false
}

func isValidResolution(s string) bool {
	switch s {
	case "merge-duplicates", "ignore-duplicates":
		return true
	}
	return false
}

// wantsSingular reports whether the client negotiated the single-object
// response shape.
func wantsSingular(r *http.Request) bool {
	return acceptContains(r, mediaTypeSingular)
}

// wantsCSV reports whether the client negotiated CSV output.
func wantsCSV(r *http.Request) bool {
	return acceptContains(r, mediaTypeCSV)
}

func acceptContains(r *http.Request, mediaType string) bool {
	for part := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(mt), mediaType) {
			return true
		}
	}
	return false
}
