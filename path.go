package assemblyfs

import (
	"fmt"
	"slices"
	"strings"
)

// Tokens splits a "/" delimited virtual path into its segments.
// Empty and "." segments are dropped and ".." removes the preceding segment.
// A ".." at the top is ignored.
func Tokens(p string) []string {
	raw := strings.Split(p, "/")
	parts := make([]string, 0, len(raw))
	for _, seg := range raw {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return parts
}

// JoinPath builds the canonical absolute path for the given segments.
func JoinPath(parts []string) string {
	return "/" + strings.Join(parts, "/")
}

// RelativePath returns the segments leading from mountPoint down to target.
// The result is empty when both are the same file.
func RelativePath(mountPoint, target *VirtualFile) ([]string, error) {
	if mountPoint == nil || target == nil {
		return nil, fmt.Errorf("relative path: nil file: %w", ErrNotDescendant)
	}
	var parts []string
	for cur := target; !cur.Equal(mountPoint); cur = cur.Parent() {
		if cur.IsRoot() {
			return nil, fmt.Errorf("%s is not below %s: %w", target.PathName(), mountPoint.PathName(), ErrNotDescendant)
		}
		parts = append(parts, cur.Name())
	}
	slices.Reverse(parts)
	return parts, nil
}
