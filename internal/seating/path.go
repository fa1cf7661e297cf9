package seating

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// ErrPathFormat is returned for output paths with a malformed date pattern.
var ErrPathFormat = errors.New("invalid output path pattern")

// FormatPath expands date patterns in an output path and makes sure it ends
// in ".csv". A pattern is a brace block holding a strftime layout after a
// colon, e.g. "Seating Plan {:%Y-%m-%d}.csv". "{}" expands to the full
// timestamp and "{{" / "}}" are literal braces.
func FormatPath(pattern string, now time.Time) (string, error) {
	var b strings.Builder

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '{' && strings.HasPrefix(pattern[i:], "{{"):
			b.WriteByte('{')
			i++
		case c == '}' && strings.HasPrefix(pattern[i:], "}}"):
			b.WriteByte('}')
			i++
		case c == '}':
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrPathFormat, i)
		case c == '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrPathFormat, i)
			}
			field := pattern[i+1 : i+end]
			expanded, err := expandField(field, now)
			if err != nil {
				return "", err
			}
			b.WriteString(expanded)
			i += end
		default:
			b.WriteByte(c)
		}
	}

	path := b.String()
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		path += ".csv"
		slog.Info("output path does not have a .csv extension, adding one", "path", path)
	}

	slog.Debug("formatted output path", "path", path)
	return path, nil
}

// expandField expands the text between one pair of braces.
func expandField(field string, now time.Time) (string, error) {
	name, spec, hasSpec := strings.Cut(field, ":")
	if name != "" && name != "0" {
		return "", fmt.Errorf("%w: unknown field %q", ErrPathFormat, name)
	}
	if strings.ContainsAny(spec, "{") {
		return "", fmt.Errorf("%w: nested '{' in %q", ErrPathFormat, field)
	}
	if !hasSpec || spec == "" {
		return now.Format("2006-01-02 15:04:05"), nil
	}
	return strftime.Format(spec, now), nil
}
