package internal_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The engine layers strictly: value types (text, theme) at the bottom,
// protocol stages (ansi, telnet, mccp, mxp) above them, and the
// streaming pipeline alone at the top. log is a leaf anyone may use.
var allowedInternalImports = map[string][]string{
	"./log":    {},
	"./text":   {},
	"./theme":  {"mudstream/internal/text"},
	"./ansi":   {"mudstream/internal/text", "mudstream/internal/theme"},
	"./telnet": {"mudstream/internal/log"},
	"./mccp":   {"mudstream/internal/log"},
	"./mxp": {
		"mudstream/internal/log",
		"mudstream/internal/text",
		"mudstream/internal/theme",
	},
	"./streaming": {
		"mudstream/internal/ansi",
		"mudstream/internal/log",
		"mudstream/internal/mccp",
		"mudstream/internal/mxp",
		"mudstream/internal/telnet",
		"mudstream/internal/text",
		"mudstream/internal/theme",
	},
}

// TestPackageImportLayering ensures every internal package imports only
// the layers beneath it.
func TestPackageImportLayering(t *testing.T) {
	for dir, allowed := range allowedInternalImports {
		checkImports(t, dir, allowed)
	}
}

func checkImports(t *testing.T, packageDir string, allowedInternal []string) {
	err := filepath.Walk(packageDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			return nil
		}

		for _, imp := range node.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)

			if !strings.Contains(importPath, "mudstream/internal") {
				continue
			}

			allowed := false
			for _, ok := range allowedInternal {
				if importPath == ok {
					allowed = true
					break
				}
			}
			if !allowed {
				t.Errorf("LAYERING break in %s: %s may not be imported from %s", path, importPath, packageDir)
			}
		}

		return nil
	})

	if err != nil {
		t.Errorf("Failed to walk directory %s: %v", packageDir, err)
	}
}
