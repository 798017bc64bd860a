// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package memocache

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

type Encoding string

const (
	EncodingZlib   Encoding = "zlib"
	EncodingZstd   Encoding = "zstd"
	EncodingBrotli Encoding = "brotli"
)

type codec interface {
	encode([]byte) ([]byte, error)
	decode([]byte) ([]byte, error)
}

func newCodec(enc Encoding) (codec, error) {
	switch enc {
	case EncodingZlib, "":
		return zlibCodec{}, nil
	case EncodingZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		return &zstdCodec{encoder: encoder, decoder: decoder}, nil
	case EncodingBrotli:
		return brotliCodec{}, nil
	default:
		return nil, errors.Errorf("unknown memo encoding %q", enc)
	}
}

type zlibCodec struct{}

func (zlibCodec) encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) decode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (c *zstdCodec) encode(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *zstdCodec) decode(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

type brotliCodec struct{}

func (brotliCodec) encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliCodec) decode(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}
