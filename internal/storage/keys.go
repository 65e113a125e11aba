package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const scheme = "s3://"

// ObjectKey lays source files out per organization and pay period:
// {prefix}/{org}/{YYYY-MM}/{batch}/{file}.
func ObjectKey(prefix string, orgID uuid.UUID, year, month int, batchID uuid.UUID, filename string) string {
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts,
		orgID.String(),
		fmt.Sprintf("%04d-%02d", year, month),
		batchID.String(),
		SanitizeFilename(filename),
	)
	return strings.Join(parts, "/")
}

// SanitizeFilename keeps the base name and replaces anything outside
// letters, digits, dot, dash and underscore.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}

func Ref(bucket, key string) string {
	return scheme + bucket + "/" + key
}

// ParseRef splits an s3://bucket/key reference.
func ParseRef(ref string) (bucket, key string, err error) {
	if !strings.HasPrefix(ref, scheme) {
		return "", "", fmt.Errorf("file reference %q is not an s3 url", ref)
	}
	rest := strings.TrimPrefix(ref, scheme)
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("file reference %q has no key", ref)
	}
	return rest[:i], rest[i+1:], nil
}
