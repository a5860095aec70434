package runs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ArtifactStatus tells apart the ways a JSON artifact read can end.
type ArtifactStatus int

const (
	ArtifactLoaded ArtifactStatus = iota
	ArtifactMissing
	ArtifactMalformed
)

func (s ArtifactStatus) String() string {
	switch s {
	case ArtifactLoaded:
		return "loaded"
	case ArtifactMissing:
		return "missing"
	case ArtifactMalformed:
		return "malformed"
	}
	return fmt.Sprintf("ArtifactStatus(%d)", int(s))
}

// Artifact is the outcome of reading one JSON file. Doc is never nil.
type Artifact struct {
	Doc    Document
	Status ArtifactStatus
	Err    error
}

type cachedArtifact struct {
	modTime time.Time
	size    int64
	doc     Document
}

// Reader loads config and metrics documents. Missing and malformed files
// degrade to an empty document; only the log line differs.
type Reader struct {
	logger *slog.Logger
	cache  *expirable.LRU[string, cachedArtifact]
}

const artifactCacheTTL = 10 * time.Minute

// NewReader builds a Reader. cacheSize <= 0 disables the parsed-document cache.
func NewReader(logger *slog.Logger, cacheSize int) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reader{logger: logger}
	if cacheSize > 0 {
		r.cache = expirable.NewLRU[string, cachedArtifact](cacheSize, nil, artifactCacheTTL)
	}
	return r
}

// ReadJSON returns the decoded object at path and whether it loaded cleanly.
func (r *Reader) ReadJSON(path string) (Document, bool) {
	a := r.Read(path)
	return a.Doc, a.Status == ArtifactLoaded
}

// Read is ReadJSON with the failure class kept.
func (r *Reader) Read(path string) Artifact {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("artifact absent", "path", path)
			return Artifact{Doc: Document{}, Status: ArtifactMissing}
		}
		r.logger.Warn("artifact unreadable", "path", path, "error", err)
		return Artifact{Doc: Document{}, Status: ArtifactMalformed, Err: err}
	}
	if info.IsDir() {
		err := fmt.Errorf("%s is a directory", path)
		r.logger.Warn("artifact unreadable", "path", path, "error", err)
		return Artifact{Doc: Document{}, Status: ArtifactMalformed, Err: err}
	}

	if r.cache != nil {
		if c, ok := r.cache.Get(path); ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
			return Artifact{Doc: c.doc, Status: ArtifactLoaded}
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("artifact absent", "path", path)
			return Artifact{Doc: Document{}, Status: ArtifactMissing}
		}
		r.logger.Warn("artifact unreadable", "path", path, "error", err)
		return Artifact{Doc: Document{}, Status: ArtifactMalformed, Err: err}
	}
	doc, err := decodeDocument(b)
	if err != nil {
		r.logger.Warn("artifact malformed", "path", path, "error", err)
		return Artifact{Doc: Document{}, Status: ArtifactMalformed, Err: err}
	}
	if r.cache != nil {
		r.cache.Add(path, cachedArtifact{modTime: info.ModTime(), size: info.Size(), doc: doc})
	}
	return Artifact{Doc: doc, Status: ArtifactLoaded}
}

func decodeDocument(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(nonFiniteToNull(b)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode: trailing data after top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode: top-level value is %T, want object", v)
	}
	return Document(obj), nil
}

var nonFiniteTokens = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// nonFiniteToNull rewrites the bare NaN, Infinity and -Infinity tokens that
// Python's json module emits into null. Text inside strings is left alone.
func nonFiniteToNull(b []byte) []byte {
	if !bytes.Contains(b, []byte("NaN")) && !bytes.Contains(b, []byte("Infinity")) {
		return b
	}
	out := make([]byte, 0, len(b))
	inString, escaped := false, false
	for i := 0; i < len(b); {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			i++
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			i++
			continue
		}
		matched := false
		for _, tok := range nonFiniteTokens {
			if bytes.HasPrefix(b[i:], tok) {
				out = append(out, "null"...)
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, c)
			i++
		}
	}
	return out
}

// sequence returns doc[key] as a slice; anything else is an empty sequence.
func (d Document) sequence(key string) []any {
	seq, _ := d[key].([]any)
	return seq
}
