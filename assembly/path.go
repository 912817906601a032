package assembly

import "github.com/brettbedarf/assemblyfs"

// Path is a single use cursor over the segments of a virtual path.
type Path struct {
	parts []string
	pos   int
}

// NewPath tokenizes p. Empty and "." segments are dropped and ".." is applied.
func NewPath(p string) *Path {
	return &Path{parts: assemblyfs.Tokens(p)}
}

// PathOf wraps already normalized segments.
func PathOf(parts []string) *Path {
	return &Path{parts: parts}
}

// Next consumes and returns the next segment. ok is false once the path is exhausted.
func (p *Path) Next() (seg string, ok bool) {
	if p.pos >= len(p.parts) {
		return "", false
	}
	seg = p.parts[p.pos]
	p.pos++
	return seg, true
}

func (p *Path) Done() bool {
	return p.pos >= len(p.parts)
}

// Remaining returns the segments not consumed yet.
func (p *Path) Remaining() []string {
	return p.parts[p.pos:]
}

func (p *Path) String() string {
	return assemblyfs.JoinPath(p.parts)
}
