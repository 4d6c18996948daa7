package fileservice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// criticalPaths can never be deleted directly, nor can any path
// exactly three segments deep beneath one of them, counting the root
// as the first segment (so "/Users/alice" is protected but
// "/Users/alice/file" is not).
var criticalPaths = []string{
	"/", "/Users", "/System", "/Library", "/Applications", "/bin", "/sbin", "/usr",
}

// validateAndResolvePath implements the seven-step path validation
// chain: tilde expansion, canonicalization, lexical traversal
// rejection, NUL rejection, blocked-path precedence, allowed-path
// membership, and (for delete) critical-path protection.
func validateAndResolvePath(path string, allowed, blocked []string, forDelete bool) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("fileservice: path contains a NUL byte")
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("Path traversal attack detected")
	}

	expanded, err := expandTilde(path)
	if err != nil {
		return "", err
	}

	canonical, err := canonicalize(expanded)
	if err != nil {
		return "", err
	}

	for _, b := range blocked {
		if isOrUnder(canonical, b) {
			return "", fmt.Errorf("fileservice: path is blocked")
		}
	}

	if len(allowed) > 0 {
		ok := false
		for _, a := range allowed {
			if isOrUnder(canonical, a) {
				ok = true
				break
			}
		}
		if !ok {
			return "", fmt.Errorf("fileservice: path is not under an allowed directory")
		}
	}

	if forDelete {
		for _, c := range criticalPaths {
			if canonical == c || isExactlyNSegmentsUnder(canonical, c, 3) {
				return "", fmt.Errorf("fileservice: refusing to delete a critical system path")
			}
		}
	}

	return canonical, nil
}

func expandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("fileservice: resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// canonicalize resolves the path to an absolute, lexically-clean form,
// following symlinks where the path (or its nearest existing ancestor)
// exists. A not-yet-existing leaf (e.g. a file about to be written) is
// resolved as far as its ancestors allow.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("fileservice: resolve absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return filepath.Clean(resolved), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("fileservice: resolve symlinks: %w", err)
	}
	// Walk up to the nearest existing ancestor and resolve that, then
	// reattach the remaining (not-yet-existing) suffix.
	dir := filepath.Dir(abs)
	base := filepath.Base(abs)
	resolvedDir, err := canonicalize(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

func isOrUnder(path, prefix string) bool {
	prefix = filepath.Clean(prefix)
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// isExactlyNSegmentsUnder reports whether path lies under base and has
// exactly n segments, the root counting as one ("/Users/alice" has 3).
func isExactlyNSegmentsUnder(path, base string, n int) bool {
	base = filepath.Clean(base)
	if !isOrUnder(path, base) {
		return false
	}
	rel := strings.Trim(filepath.Clean(path), string(filepath.Separator))
	if rel == "" {
		return n == 1
	}
	return len(strings.Split(rel, string(filepath.Separator)))+1 == n
}
