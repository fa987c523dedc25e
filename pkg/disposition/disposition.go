// Package disposition extracts suggested filenames from Content-Disposition
// header values.
//
// Well-formed headers are parsed with mime.ParseMediaType, which handles
// quoting and RFC 2231/5987 extended parameters (filename*=UTF-8''...).
// Headers that the strict parser rejects fall back to a lenient scan for a
// filename parameter. The returned name is always a bare base name.
package disposition

import (
	"mime"
	"path"
	"regexp"
	"strings"
)

// Result is the parsed form of a Content-Disposition header
type Result struct {
	Type     string // inline, attachment, ...
	Filename string // empty when no usable name was found
	Params   map[string]string
}

var lenientFilename = regexp.MustCompile(`(?i)filename\*?\s*=\s*(?:UTF-8'[^']*')?("([^"]*)"|[^;]+)`)

// Parse parses a raw header value. It never fails; an absent or unusable
// header yields a Result with an empty Filename.
func Parse(header string) Result {
	header = strings.TrimSpace(header)
	if header == "" {
		return Result{}
	}

	mediaType, params, err := mime.ParseMediaType(header)
	if err == nil {
		return Result{
			Type:     mediaType,
			Filename: Sanitize(params["filename"]),
			Params:   params,
		}
	}

	res := Result{}
	if idx := strings.Index(header, ";"); idx >= 0 {
		res.Type = strings.ToLower(strings.TrimSpace(header[:idx]))
	}

	m := lenientFilename.FindStringSubmatch(header)
	if m == nil {
		return res
	}
	name := m[2]
	if name == "" {
		name = strings.Trim(strings.TrimSpace(m[1]), `"`)
	}
	res.Filename = Sanitize(name)
	return res
}

// Filename returns only the suggested filename of header
func Filename(header string) string {
	return Parse(header).Filename
}

// Sanitize reduces name to a safe base name. Directory components, control
// characters and the special names "." and ".." are removed.
func Sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		if r == '\\' {
			return '/'
		}
		return r
	}, name)

	name = strings.TrimSpace(path.Base(name))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
