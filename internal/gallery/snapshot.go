package gallery

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/renameio"
)

// Format is a snapshot serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatGob  Format = "gob"
)

// ParseFormat accepts "json" or "gob".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatGob:
		return f, nil
	default:
		return "", fmt.Errorf("unknown snapshot format %q", s)
	}
}

// FormatForPath picks the format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".gob") {
		return FormatGob
	}
	return FormatJSON
}

// snapshot is the serialized form produced by the enrollment job:
// parallel sequences of encodings and identity keys.
type snapshot struct {
	Encodings [][]float64 `json:"encodings"`
	Names     []string    `json:"names"`
}

// Decode reads a snapshot, detecting JSON or gob from the first byte.
func Decode(r io.Reader) (*Gallery, error) {
	br := bufio.NewReader(r)

	var first byte
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return nil, ErrEmptySnapshot
		}
		if err != nil {
			return nil, fmt.Errorf("reading snapshot: %w", err)
		}
		if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		first = b
		_ = br.UnreadByte()
		break
	}

	var snap snapshot
	if first == '{' {
		if err := json.NewDecoder(br).Decode(&snap); err != nil {
			return nil, fmt.Errorf("decoding JSON snapshot: %w", err)
		}
	} else {
		if err := gob.NewDecoder(br).Decode(&snap); err != nil {
			return nil, fmt.Errorf("decoding gob snapshot: %w", err)
		}
	}

	return New(snap.Encodings, snap.Names)
}

// Encode writes g as a snapshot in the given format.
func (g *Gallery) Encode(w io.Writer, format Format) error {
	snap := snapshot{Encodings: g.embeddings, Names: g.keys}
	if snap.Encodings == nil {
		snap.Encodings = [][]float64{}
		snap.Names = []string{}
	}

	switch format {
	case FormatGob:
		if err := gob.NewEncoder(w).Encode(&snap); err != nil {
			return fmt.Errorf("encoding gob snapshot: %w", err)
		}
	case FormatJSON:
		if err := json.NewEncoder(w).Encode(&snap); err != nil {
			return fmt.Errorf("encoding JSON snapshot: %w", err)
		}
	default:
		return fmt.Errorf("unknown snapshot format %q", format)
	}
	return nil
}

// LoadFile reads a snapshot file.
func LoadFile(path string) (*Gallery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	g, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// SaveFile atomically replaces path with a snapshot of g, so a watching
// process never reads a half-written file.
func SaveFile(path string, g *Gallery, format Format) error {
	var buf bytes.Buffer
	if err := g.Encode(&buf, format); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
