package simplestore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DirectoryProvider maps a namespace to the directory holding its entries.
// It must be deterministic, and nested namespaces must map to nested
// directories.
type DirectoryProvider interface {
	Resolve(namespace string, cfg NamespaceConfig) (string, error)
}

const rootDirName = "simplestore"

// RootDirectoryProvider places namespaces under <DataDir>/simplestore, or
// under <CacheDir>/simplestore for NamespaceConfigCache.
type RootDirectoryProvider struct {
	DataDir  string
	CacheDir string
}

// NewRootDirectoryProvider returns the default provider. An empty cacheDir
// falls back to <dataDir>/cache.
func NewRootDirectoryProvider(dataDir, cacheDir string) *RootDirectoryProvider {
	if cacheDir == "" {
		cacheDir = filepath.Join(dataDir, "cache")
	}
	return &RootDirectoryProvider{DataDir: dataDir, CacheDir: cacheDir}
}

func (p *RootDirectoryProvider) Resolve(namespace string, cfg NamespaceConfig) (string, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return "", err
	}

	root := p.DataDir
	if cfg == NamespaceConfigCache {
		root = p.CacheDir
	}
	if root == "" {
		return "", fmt.Errorf("simplestore: no root directory configured for %s namespaces", cfg)
	}

	return filepath.Join(root, rootDirName, filepath.FromSlash(namespace)), nil
}

// ValidateNamespace checks that namespace is "" (the root namespace) or a
// "/"-separated path of segments made of [A-Za-z0-9._-]. Segments may not be
// empty or start with a dot.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return nil
	}

	for _, segment := range strings.Split(namespace, "/") {
		if segment == "" {
			return fmt.Errorf("%w: '%s' has an empty segment", ErrInvalidNamespace, namespace)
		}
		if segment[0] == '.' {
			return fmt.Errorf("%w: segment %q of '%s' starts with a dot", ErrInvalidNamespace, segment, namespace)
		}
		for i := 0; i < len(segment); i++ {
			if !isNamespaceByte(segment[i]) {
				return fmt.Errorf("%w: '%s' contains %q", ErrInvalidNamespace, namespace, segment[i])
			}
		}
	}
	return nil
}

func isNamespaceByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '.' || c == '_' || c == '-'
}

// isWithin reports whether dir lies strictly below parent.
func isWithin(dir, parent string) bool {
	rel, err := filepath.Rel(parent, dir)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
