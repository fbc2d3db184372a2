package serialize

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every ZStandard frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// compressWriter wraps w in a ZStandard stream encoder.
// Uses SpeedDefault (level 3) for balanced compression ratio and speed.
// Caller must Close() the encoder to flush the final frame.
func compressWriter(w io.Writer) (*zstd.Encoder, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc, nil
}

// maybeDecompress sniffs r and wraps it in a ZStandard decoder when it starts
// with a zstd frame. The returned close function releases the decoder.
func maybeDecompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if !bytes.Equal(head, zstdMagic) {
		return br, func() {}, nil
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec, dec.Close, nil
}
