package changes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathGuard confines relative paths to a project root.
//
// A path is accepted only if, after normalization, it is relative, has no
// ".." segment, is not the root itself, does not fall inside a reserved
// directory, and no existing ancestor is a symlink leading out of the root.
type PathGuard struct {
	root         string
	resolvedRoot string
	reserved     []string
}

// NewPathGuard creates a guard for root. Reserved entries are root-relative
// directories that may never be written through the guard.
func NewPathGuard(root string, reserved ...string) (*PathGuard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Root may not exist yet; fall back to the lexical path.
		resolved = abs
	}

	g := &PathGuard{root: abs, resolvedRoot: resolved}
	for _, r := range reserved {
		if r == "" {
			continue
		}
		g.reserved = append(g.reserved, filepath.Clean(filepath.FromSlash(r)))
	}
	return g, nil
}

// Root returns the absolute project root.
func (g *PathGuard) Root() string {
	return g.root
}

// Resolve validates rel and returns its normalized slash-separated form and
// the absolute path on disk. Errors carry KindUnsafePath. Resolve performs
// no writes.
func (g *PathGuard) Resolve(rel string) (string, string, error) {
	clean, err := g.normalize(rel)
	if err != nil {
		return "", "", newError(KindUnsafePath, rel, err)
	}

	abs := filepath.Join(g.root, clean)
	if err := g.checkSymlinks(abs); err != nil {
		return "", "", newError(KindUnsafePath, rel, err)
	}
	return filepath.ToSlash(clean), abs, nil
}

func (g *PathGuard) normalize(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", errors.New("empty path")
	}
	if strings.ContainsRune(rel, 0) {
		return "", errors.New("path contains NUL byte")
	}
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" ||
		strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", errors.New("absolute paths are not allowed")
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." {
		return "", errors.New("path refers to the project root")
	}
	for _, seg := range strings.Split(filepath.ToSlash(clean), "/") {
		if seg == ".." {
			return "", errors.New("path escapes the project root")
		}
	}
	for _, r := range g.reserved {
		if clean == r || strings.HasPrefix(clean, r+string(filepath.Separator)) {
			return "", fmt.Errorf("path is inside reserved directory %s", filepath.ToSlash(r))
		}
	}
	return clean, nil
}

// checkSymlinks resolves the deepest existing ancestor of abs (abs
// included) and rejects the path if it lands outside the root or inside a
// reserved directory.
func (g *PathGuard) checkSymlinks(abs string) error {
	for p := abs; within(g.root, p); p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err != nil {
			if p == g.root {
				return nil
			}
			continue
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			// Dangling symlink: refuse rather than write through it.
			return fmt.Errorf("cannot resolve %s: %w", p, err)
		}
		if !within(g.resolvedRoot, resolved) {
			return errors.New("path resolves outside the project root")
		}
		rest, err := filepath.Rel(p, abs)
		if err != nil {
			return fmt.Errorf("cannot resolve %s: %w", abs, err)
		}
		target := filepath.Join(resolved, rest)
		for _, dir := range g.resolvedReserved() {
			if within(dir, target) {
				return fmt.Errorf("path resolves into reserved directory %s", dir)
			}
		}
		return nil
	}
	return nil
}

// resolvedReserved returns the reserved directories with symlinks
// resolved. Directories that do not exist yet keep their lexical path
// under the resolved root.
func (g *PathGuard) resolvedReserved() []string {
	dirs := make([]string, 0, len(g.reserved))
	for _, r := range g.reserved {
		dir := filepath.Join(g.resolvedRoot, r)
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolved
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

// within reports whether target is base or below it.
func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
