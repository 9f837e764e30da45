package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// Frame layout: magic | flags | blake2b-256 of the uncompressed payload | payload.
var frameMagic = []byte("QK1")

const (
	flagZstd byte = 1 << 0

	headerLen = 3 + 1 + blake2b.Size256

	// maxDecodedSize caps what a single compressed frame may expand to.
	maxDecodedSize = 64 << 20
)

// CodecStore frames every value with an integrity digest and optionally
// compresses it with zstd before handing it to the wrapped store.
type CodecStore struct {
	inner    Store
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewCodecStore wraps inner. Reads accept both compressed and uncompressed
// frames regardless of compress.
func NewCodecStore(inner Store, compress bool) (*CodecStore, error) {
	return newCodecStore(inner, compress, maxDecodedSize)
}

func newCodecStore(inner Store, compress bool, maxDecoded uint64) (*CodecStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoded))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &CodecStore{inner: inner, compress: compress, enc: enc, dec: dec}, nil
}

// Encode frames data.
func (s *CodecStore) Encode(data []byte) []byte {
	sum := blake2b.Sum256(data)
	var flags byte
	payload := data
	if s.compress {
		flags |= flagZstd
		payload = s.enc.EncodeAll(data, nil)
	}

	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, frameMagic...)
	out = append(out, flags)
	out = append(out, sum[:]...)
	return append(out, payload...)
}

// Decode verifies and unwraps a frame produced by Encode.
func (s *CodecStore) Decode(frame []byte) ([]byte, error) {
	if len(frame) < headerLen || !bytes.Equal(frame[:3], frameMagic) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	flags := frame[3]
	want := frame[4:headerLen]
	payload := frame[headerLen:]

	data := payload
	if flags&flagZstd != 0 {
		var err error
		data, err = s.dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	sum := blake2b.Sum256(data)
	if !bytes.Equal(sum[:], want) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return data, nil
}

func (s *CodecStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	frame, found, err := s.inner.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}
	data, err := s.Decode(frame)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", key, err)
	}
	return data, true, nil
}

func (s *CodecStore) Set(ctx context.Context, key string, data []byte) error {
	return s.inner.Set(ctx, key, s.Encode(data))
}

// Inner returns the wrapped store.
func (s *CodecStore) Inner() Store {
	return s.inner
}

func (s *CodecStore) Close() error {
	s.dec.Close()
	return errors.Join(s.enc.Close(), s.inner.Close())
}
