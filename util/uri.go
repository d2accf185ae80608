package util

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"github.com/slatex/stexls/logging"
)

type Path = string
type URI = string

// Handle bundles a document's URI with its filesystem path, since most
// workspace/server code needs both and recomputing one from the other on
// every call would be wasteful.
type Handle struct {
	URI  URI
	Path Path
}

func FromPath(path string) Handle {
	return Handle{Path2URI(path), path}
}

func FromURI(uri string) (Handle, error) {
	path, err := URI2path(uri)
	return Handle{uri, path}, err
}

func URI2path(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	logging.Logger.Printf("parsed uri %q as path %q", uri, parsed.Path)
	if IsWindowsDriveURIPath(parsed.Path) {
		parsed.Path = strings.ToUpper(string(parsed.Path[1])) + parsed.Path[2:]
	}
	return filepath.FromSlash(parsed.Path), nil
}

func Path2URI(path string) URI {
	scheme := "file://"
	if runtime.GOOS == "windows" {
		path = "/" + strings.Replace(path, "\\", "/", -1)
	}
	return scheme + path
}

func IsWindowsDriveURIPath(uri string) bool {
	if len(uri) < 4 {
		return false
	}
	return uri[0] == '/' && unicode.IsLetter(rune(uri[1])) && uri[2] == ':'
}

func IsWindowsDrivePath(path string) bool {
	if len(path) < 3 {
		return false
	}
	return unicode.IsLetter(rune(path[0])) && path[1] == ':'
}
