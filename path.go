package seamfs

import (
	"fmt"
	"strings"
)

// Separator delimits path segments. A trailing separator marks a directory.
const Separator = '/'

const sep = string(Separator)

// Path is an immutable, rooted, separator-delimited location inside one backend's
// namespace. A trailing separator marks a directory; anything else is a file.
//
// The zero value is the root path.
type Path struct {
	s string
}

// Root returns the root directory path, which is the zero value.
func Root() Path {
	return Path{}
}

// newPath builds a Path from an already validated string. Root is always stored
// as the zero value so == and map keys agree.
func newPath(s string) Path {
	if s == sep {
		return Path{}
	}
	return Path{s: s}
}

// ParsePath validates s and returns it as a Path. s must start with the separator
// and must not contain doubled separators.
func ParsePath(s string) (Path, error) {
	if !strings.HasPrefix(s, sep) {
		return Path{}, &ParseError{Input: s, Reason: "path is not rooted"}
	}
	if strings.Contains(s, sep+sep) {
		return Path{}, &ParseError{Input: s, Reason: "path contains doubled separators"}
	}
	return newPath(s), nil
}

// MustParsePath is like [ParsePath] but panics on malformed input.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	if p.s == "" {
		return sep
	}
	return p.s
}

func (p Path) IsDirectory() bool {
	return strings.HasSuffix(p.String(), sep)
}

func (p Path) IsFile() bool {
	return !p.IsDirectory()
}

func (p Path) IsRoot() bool {
	return p.String() == sep
}

// EntityName returns the last segment without any trailing separator.
func (p Path) EntityName() (string, error) {
	if p.IsRoot() {
		return "", fmt.Errorf("%w: root has no entity name", ErrInvalidOperation)
	}
	s := strings.TrimSuffix(p.String(), sep)
	return s[strings.LastIndexByte(s, Separator)+1:], nil
}

// ParentPath returns the directory one level above p.
func (p Path) ParentPath() (Path, error) {
	if p.IsRoot() {
		return Path{}, fmt.Errorf("%w: root has no parent", ErrInvalidOperation)
	}
	s := strings.TrimSuffix(p.String(), sep)
	return newPath(s[:strings.LastIndexByte(s, Separator)+1]), nil
}

// AppendDirectory returns the child directory called name.
func (p Path) AppendDirectory(name string) (Path, error) {
	if err := p.checkAppend(name); err != nil {
		return Path{}, err
	}
	return newPath(p.String() + name + sep), nil
}

// AppendFile returns the child file called name.
func (p Path) AppendFile(name string) (Path, error) {
	if err := p.checkAppend(name); err != nil {
		return Path{}, err
	}
	return newPath(p.String() + name), nil
}

func (p Path) checkAppend(name string) error {
	if !p.IsDirectory() {
		return fmt.Errorf("%w: cannot append to file path %s", ErrInvalidOperation, p)
	}
	if name == "" {
		return fmt.Errorf("%w: empty entity name", ErrInvalidOperation)
	}
	if strings.ContainsRune(name, Separator) {
		return fmt.Errorf("%w: entity name %q contains a separator", ErrInvalidOperation, name)
	}
	return nil
}

// AppendRelative appends an unrooted relative path string such as "a/b/c.txt".
func (p Path) AppendRelative(rel string) (Path, error) {
	if strings.HasPrefix(rel, sep) {
		return Path{}, fmt.Errorf("%w: %q is rooted", ErrInvalidOperation, rel)
	}
	if !p.IsDirectory() {
		return Path{}, fmt.Errorf("%w: cannot append to file path %s", ErrInvalidOperation, p)
	}
	return ParsePath(p.String() + rel)
}

// AppendPath appends rel, dropping its root marker, so "/a/" + "/b/c" is "/a/b/c".
func (p Path) AppendPath(rel Path) (Path, error) {
	if !p.IsDirectory() {
		return Path{}, fmt.Errorf("%w: cannot append to file path %s", ErrInvalidOperation, p)
	}
	return newPath(p.String() + rel.String()[1:]), nil
}

// IsParentOf reports whether other lies strictly below p.
func (p Path) IsParentOf(other Path) bool {
	return p.IsDirectory() &&
		len(p.String()) != len(other.String()) &&
		strings.HasPrefix(other.String(), p.String())
}

func (p Path) IsChildOf(other Path) bool {
	return other.IsParentOf(p)
}

// RemoveParent strips the parent prefix, keeping the result rooted:
// "/a/b/c" without "/a/" is "/b/c".
func (p Path) RemoveParent(parent Path) (Path, error) {
	if !parent.IsParentOf(p) {
		return Path{}, fmt.Errorf("%w: %s is not a parent of %s", ErrInvalidOperation, parent, p)
	}
	return newPath(p.String()[len(parent.String())-1:]), nil
}

// RemoveChild strips the child suffix: "/a/b/c" without "/b/c" is "/a/".
func (p Path) RemoveChild(child Path) (Path, error) {
	s, c := p.String(), child.String()
	if child.IsRoot() || !strings.HasSuffix(s, c) || len(s) == len(c) {
		return Path{}, fmt.Errorf("%w: %s is not a child of %s", ErrInvalidOperation, child, p)
	}
	return newPath(s[:len(s)-len(c)+1]), nil
}

// DirectorySegments returns the directory names from the root down to the
// directory containing p (or p itself for a directory path).
func (p Path) DirectorySegments() []string {
	s := p.String()
	dir := s[:strings.LastIndexByte(s, Separator)]
	if dir == "" {
		return []string{}
	}
	return strings.Split(dir[1:], sep)
}

// Extension returns the entity name's extension including the dot, or "" for
// directories and names without one.
func (p Path) Extension() string {
	if p.IsDirectory() {
		return ""
	}
	name, _ := p.EntityName()
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

// ChangeExtension swaps the file extension. An empty ext strips it.
func (p Path) ChangeExtension(ext string) (Path, error) {
	if p.IsDirectory() {
		return Path{}, fmt.Errorf("%w: %s is not a file", ErrInvalidOperation, p)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	base := strings.TrimSuffix(p.String(), p.Extension())
	if strings.HasSuffix(base, sep) {
		return Path{}, fmt.Errorf("%w: no name left in %s", ErrInvalidOperation, p)
	}
	return newPath(base + ext), nil
}

// Compare orders paths by their string form.
func (p Path) Compare(other Path) int {
	return strings.Compare(p.String(), other.String())
}

func (p Path) Equal(other Path) bool {
	return p.String() == other.String()
}

func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
