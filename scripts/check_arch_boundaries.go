package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePrefix = "parallel-ytdl/internal/"

// allowed lists, per internal package, the internal packages it may import.
// Leaf packages import nothing internal.
var allowed = map[string]map[string]bool{
	"cli": {
		"cache":     true,
		"config":    true,
		"dashboard": true,
		"dispatch":  true,
		"log":       true,
	},
	"config": {
		"cache": true,
	},
	"dispatch": {
		"cache":  true,
		"model":  true,
		"naming": true,
		"pool":   true,
		"ytdlp":  true,
	},
	"pool": {
		"log":    true,
		"model":  true,
		"naming": true,
		"queue":  true,
		"ytdlp":  true,
	},
	"dashboard": {
		"model": true,
	},
	"cache": {
		"model": true,
	},
	"queue": {
		"model": true,
	},
	"log":    {},
	"model":  {},
	"naming": {},
	"ytdlp":  {},
}

// binaries under cmd/ only reach the module through the cli package.
var cmdAllowed = map[string]bool{
	"cli": true,
}

func main() {
	var violations []string
	for _, root := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			v, err := checkFile(path)
			if err != nil {
				return err
			}
			violations = append(violations, v...)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "boundary walk failed: %v\n", err)
			os.Exit(1)
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "architecture boundary violations detected:")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "- %s\n", v)
		}
		os.Exit(1)
	}
	fmt.Println("architecture boundary check: OK")
}

func checkFile(path string) ([]string, error) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 2 {
		return nil, nil
	}

	var src string
	var allow map[string]bool
	switch parts[0] {
	case "cmd":
		src, allow = "cmd/"+parts[1], cmdAllowed
	case "internal":
		src = parts[1]
		var ok bool
		if allow, ok = allowed[src]; !ok {
			return []string{fmt.Sprintf("%s: unknown source package %q", path, src)}, nil
		}
	default:
		return nil, nil
	}

	file, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, imp := range file.Imports {
		tgt, ok := internalPackage(strings.Trim(imp.Path.Value, "\""))
		if !ok || tgt == src {
			continue
		}
		if !allow[tgt] {
			out = append(out, fmt.Sprintf("%s: %s -> %s is forbidden", path, src, tgt))
		}
	}
	return out, nil
}

func internalPackage(importPath string) (string, bool) {
	rest, ok := strings.CutPrefix(importPath, modulePrefix)
	if !ok || rest == "" {
		return "", false
	}
	pkg, _, _ := strings.Cut(rest, "/")
	return pkg, true
}
