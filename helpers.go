package qjsbuild

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MatchesPattern checks if a name matches any of the given regex patterns.
//
// The binding generator uses this for its symbol allowlist, e.g.
//
//	if MatchesPattern(name, `^JS`, `^js`, `^__JS`) {
//	    // keep this declaration
//	}
//
// If a pattern is invalid regex, it is silently skipped.
func MatchesPattern(name string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, name); matched {
			return true
		}
	}
	return false
}

// toolError formats a fatal external-tool failure, forwarding the tool's
// output verbatim so the underlying diagnostic is never swallowed.
//
// With output:
//
//	patch failed: exit status 1
//
//	Tool output:
//	patching file quickjs.c
//	Hunk #1 FAILED at 102.
func toolError(tool string, output []string, err error) error {
	outputStr := strings.TrimSpace(strings.Join(output, "\n"))

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s failed: %v", tool, err)
	} else {
		prefix = fmt.Sprintf("%s failed", tool)
	}

	if outputStr != "" {
		return fmt.Errorf("%s\n\nTool output:\n%s", prefix, outputStr)
	}
	return fmt.Errorf("%s", prefix)
}

// copyFile copies a regular file, creating the destination directory and
// preserving the source mode.
func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	if mkErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// outputLines splits combined subprocess output into trimmed lines, dropping
// a single trailing empty line so results read cleanly.
func outputLines(combined []byte) []string {
	lines := strings.Split(string(combined), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result
}
