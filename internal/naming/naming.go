// Package naming parses student identities out of submission folder names.
// Moodle exports have used two folder conventions over the years; the
// scheme in use is chosen by configuration.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

var (
	// nameIDPattern matches "Ada Lovelace_1234567_assignsubmission_file_".
	nameIDPattern = regexp.MustCompile(`^(?P<name>[A-Za-z][A-Za-z' \-]*)_(?P<id>\d+)`)

	// idNamePattern matches "1234567 - Ada Lovelace - Worksheet 3".
	idNamePattern = regexp.MustCompile(`^(?P<id>\d+)\s*-\s*(?P<name>[A-Za-z][A-Za-z' \-]*?)\s*-`)
)

// Parser extracts a Student from a folder name.
type Parser struct {
	scheme   types.NamingScheme
	patterns []*regexp.Regexp
}

// New returns the parser for scheme. An empty scheme means NamingAuto.
func New(scheme types.NamingScheme) (*Parser, error) {
	var patterns []*regexp.Regexp
	switch scheme {
	case types.NamingAuto, "":
		scheme = types.NamingAuto
		patterns = []*regexp.Regexp{nameIDPattern, idNamePattern}
	case types.NamingNameID:
		patterns = []*regexp.Regexp{nameIDPattern}
	case types.NamingIDName:
		patterns = []*regexp.Regexp{idNamePattern}
	default:
		return nil, fmt.Errorf("unknown naming scheme %q: use auto, name-id, or id-name", scheme)
	}
	return &Parser{scheme: scheme, patterns: patterns}, nil
}

// Scheme returns the scheme the parser was built for.
func (p *Parser) Scheme() types.NamingScheme { return p.scheme }

// Parse returns the student encoded in folder, or false when the name does
// not follow the scheme.
func (p *Parser) Parse(folder string) (types.Student, bool) {
	for _, re := range p.patterns {
		m := re.FindStringSubmatch(folder)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[re.SubexpIndex("name")])
		id := m[re.SubexpIndex("id")]
		if name == "" {
			continue
		}
		return types.Student{Name: name, ID: id}, true
	}
	return types.Student{}, false
}

// Label returns the text stamped on a submission's first page: "Name ID",
// or only the ID when names are hidden for anonymous marking.
func Label(s types.Student, showNames bool) string {
	if showNames {
		return s.Name + " " + s.ID
	}
	return s.ID
}
