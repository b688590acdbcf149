package net

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format selects a model encoding.
type Format int

const (
	// FormatJSON is indented JSON, readable and diffable.
	FormatJSON Format = iota
	// FormatGob is Go's gob encoding.
	FormatGob
	// FormatProto is a protobuf Struct message.
	FormatProto
)

// ErrUnknownFormat is returned for an unsupported model file extension.
var ErrUnknownFormat = errors.New("net: unknown model format")

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatGob:
		return "gob"
	case FormatProto:
		return "proto"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatFromPath picks the format from the file extension:
// .json, .gob or .bin, and .pb.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".gob", ".bin":
		return FormatGob, nil
	case ".pb":
		return FormatProto, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Encode writes the network to w in the given format.
func (n *Network) Encode(w io.Writer, f Format) error {
	rec, err := n.Record()
	if err != nil {
		return err
	}
	return EncodeRecord(w, rec, f)
}

// EncodeRecord writes rec to w in the given format.
func EncodeRecord(w io.Writer, rec *ModelRecord, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case FormatGob:
		if err := gob.NewEncoder(w).Encode(rec); err != nil {
			return fmt.Errorf("failed to encode gob: %w", err)
		}
		return nil
	case FormatProto:
		data, err := marshalProto(rec)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write proto: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// Decode reads a network from r in the given format.
func Decode(r io.Reader, f Format) (*Network, error) {
	rec, err := DecodeRecord(r, f)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec)
}

// DecodeRecord reads a model record from r in the given format.
func DecodeRecord(r io.Reader, f Format) (*ModelRecord, error) {
	var rec ModelRecord
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&rec); err != nil {
			return nil, fmt.Errorf("%w: json: %v", ErrCorruptRecord, err)
		}
	case FormatGob:
		if err := gob.NewDecoder(r).Decode(&rec); err != nil {
			return nil, fmt.Errorf("%w: gob: %v", ErrCorruptRecord, err)
		}
	case FormatProto:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read proto: %w", err)
		}
		p, err := unmarshalProto(data)
		if err != nil {
			return nil, err
		}
		rec = *p
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
	}
	return &rec, nil
}

// Save writes the network to path in the format implied by its extension.
// The file is replaced atomically.
func (n *Network) Save(path string) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := n.Encode(&buf, f); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

// Load reads a network from path in the format implied by its extension.
func Load(path string) (*Network, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	n, err := Decode(file, f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return n, nil
}
