package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// safeName transliterates OCR (or user) text into a filesystem-safe base
// name: ASCII alphanumerics, space, hyphen and underscore survive, everything
// else becomes an underscore. Empty input falls back to "unnamed".
func safeName(text string) string {
	if text == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, text)
}

// resolveName derives the final .png filename for text, appending _1, _2, ...
// until exists reports a free name. Each destination (directory, archive)
// supplies its own exists check so collisions are resolved per namespace.
func resolveName(text string, exists func(string) bool) string {
	base := safeName(text)
	name := base + ".png"
	for n := 1; exists(name); n++ {
		name = fmt.Sprintf("%s_%d.png", base, n)
	}
	return name
}

// dirHasFile is the exists check for an on-disk destination directory.
func dirHasFile(dir string) func(string) bool {
	return func(name string) bool {
		_, err := os.Stat(filepath.Join(dir, name))
		return err == nil
	}
}
