package main

import (
	"archive/zip"
	"bytes"
)

// zipBuilder accumulates an in-memory deflate zip and remembers the names
// already added so the naming policy can resolve in-archive collisions.
type zipBuilder struct {
	buf   bytes.Buffer
	zw    *zip.Writer
	names map[string]struct{}
}

func newZipBuilder() *zipBuilder {
	b := &zipBuilder{names: map[string]struct{}{}}
	b.zw = zip.NewWriter(&b.buf)
	return b
}

// Has reports whether name is already present; it doubles as the exists
// check for resolveName.
func (b *zipBuilder) Has(name string) bool {
	_, ok := b.names[name]
	return ok
}

func (b *zipBuilder) Add(name string, data []byte) error {
	w, err := b.zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	b.names[name] = struct{}{}
	return nil
}

// Bytes finalizes the archive. The builder must not be reused afterwards.
func (b *zipBuilder) Bytes() ([]byte, error) {
	if err := b.zw.Close(); err != nil {
		return nil, err
	}
	return b.buf.Bytes(), nil
}
