package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimestampLayout = "2006-01-02 15:04:05"

var bufferPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// consolePrefix holds the fields rendered ahead of the message rather than
// as key=value pairs.
type consolePrefix struct {
	component string
	passID    string
	itemID    string
}

// take reports whether key is a prefix field and records its value.
func (p *consolePrefix) take(key string, v slog.Value) bool {
	switch key {
	case FieldComponent:
		if p.component == "" {
			p.component = valueText(v)
		}
	case FieldPassID:
		p.passID = valueText(v)
	case FieldItemID:
		p.itemID = valueText(v)
	default:
		return false
	}
	return true
}

// subject renders "pass 1a2b3c4d · item 01J..." for the console prefix.
func (p consolePrefix) subject() string {
	parts := make([]string, 0, 2)
	if passID := strings.TrimSpace(p.passID); passID != "" {
		if len(passID) > 8 {
			passID = passID[:8]
		}
		parts = append(parts, "pass "+passID)
	}
	if itemID := strings.TrimSpace(p.itemID); itemID != "" {
		parts = append(parts, "item "+itemID)
	}
	return strings.Join(parts, " · ")
}

type consoleField struct {
	key   string
	value slog.Value
}

// consoleHandler writes one human-readable line per record:
//
//	2026-03-01 08:00:00 INFO  syncer [pass 1a2b3c4d]: sync pass completed attempted=2
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	addSource bool

	groups []string
	prefix consolePrefix
	fields []consoleField
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	prefix := h.prefix
	fields := make([]consoleField, 0, len(h.fields)+record.NumAttrs())
	fields = append(fields, h.fields...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = collectField(fields, &prefix, h.groups, attr)
		return true
	})

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.In(time.Local).Format(consoleTimestampLayout))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')

	if prefix.component != "" {
		buf.WriteString(prefix.component)
		if subject := prefix.subject(); subject != "" {
			fmt.Fprintf(buf, " [%s]", subject)
		}
		buf.WriteString(": ")
	}

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)

	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(buf, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}

	for _, field := range fields {
		buf.WriteByte(' ')
		buf.WriteString(field.key)
		buf.WriteByte('=')
		appendValue(buf, field.value)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// WithAttrs resolves prefix fields once so records only scan their own attrs.
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, attr := range attrs {
		clone.fields = collectField(clone.fields, &clone.prefix, clone.groups, attr)
	}
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	clone := *h
	clone.groups = append([]string(nil), h.groups...)
	clone.fields = append([]consoleField(nil), h.fields...)
	return &clone
}

// collectField flattens groups into dotted keys. Prefix fields are only
// recognised outside of groups.
func collectField(dst []consoleField, prefix *consolePrefix, groups []string, attr slog.Attr) []consoleField {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		nested := groups
		if attr.Key != "" {
			nested = append(append([]string(nil), groups...), attr.Key)
		}
		for _, child := range attr.Value.Group() {
			dst = collectField(dst, prefix, nested, child)
		}
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	if len(groups) == 0 && prefix.take(attr.Key, attr.Value) {
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, consoleField{key: key, value: attr.Value})
}

// valueText returns the unquoted text of v.
func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().In(time.Local).Format(consoleTimestampLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// appendValue writes v, quoting text that would break key=value parsing.
func appendValue(buf *bytes.Buffer, v slog.Value) {
	switch v.Kind() {
	case slog.KindBool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case slog.KindInt64:
		buf.WriteString(strconv.FormatInt(v.Int64(), 10))
	case slog.KindUint64:
		buf.WriteString(strconv.FormatUint(v.Uint64(), 10))
	case slog.KindFloat64:
		buf.WriteString(strconv.FormatFloat(v.Float64(), 'f', -1, 64))
	case slog.KindDuration:
		buf.WriteString(v.Duration().String())
	default:
		text := valueText(v)
		if strings.IndexFunc(text, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 || text == "" {
			buf.WriteString(strconv.Quote(text))
			return
		}
		buf.WriteString(text)
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}
