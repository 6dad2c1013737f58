package routeros

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Length prefix thresholds
const (
	maxLen1 = 0x80
	maxLen2 = 0x4000
	maxLen3 = 0x200000
	maxLen4 = 0x10000000
)

// MaxWordLen bounds a decoded word. Longer prefixes are ErrInvalidLength.
const MaxWordLen = 8 << 20

var (
	// ErrInvalidLength is returned for a reserved control byte in a length prefix
	ErrInvalidLength = errors.New("invalid word length prefix")

	// ErrInvalidUTF8 is returned when a word is not valid UTF-8
	ErrInvalidUTF8 = errors.New("word is not valid utf-8")
)

// EncodeLength encodes a word length into its 1-5 byte prefix
func EncodeLength(n uint32) []byte {
	switch {
	case n < maxLen1:
		return []byte{byte(n)}
	case n < maxLen2:
		n |= 0x8000
		return []byte{byte(n >> 8), byte(n)}
	case n < maxLen3:
		n |= 0xC00000
		return []byte{byte(n >> 16), byte(n >> 8), byte(n)}
	case n < maxLen4:
		n |= 0xE0000000
		return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	default:
		return []byte{0xF0, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	}
}

// DecodeLength reads a length prefix. The top bits of the first byte select
// how many continuation bytes follow.
func DecodeLength(r io.ByteReader) (uint32, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	var extra int
	var n uint32
	switch {
	case b&0x80 == 0x00:
		return uint32(b), nil
	case b&0xC0 == 0x80:
		extra, n = 1, uint32(b&0x3F)
	case b&0xE0 == 0xC0:
		extra, n = 2, uint32(b&0x1F)
	case b&0xF0 == 0xE0:
		extra, n = 3, uint32(b&0x0F)
	case b == 0xF0:
		extra, n = 4, 0
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrInvalidLength, b)
	}

	for i := 0; i < extra; i++ {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		n = n<<8 | uint32(c)
	}

	return n, nil
}

// EncodeWord encodes s as a length-prefixed word
func EncodeWord(s string) []byte {
	prefix := EncodeLength(uint32(len(s)))
	buf := make([]byte, 0, len(prefix)+len(s))
	buf = append(buf, prefix...)
	return append(buf, s...)
}

// DecodeWord reads one word. An empty word marks the end of a sentence.
func DecodeWord(r *bufio.Reader) (string, error) {
	n, err := DecodeLength(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if n > MaxWordLen {
		return "", fmt.Errorf("%w: word of %d bytes exceeds %d", ErrInvalidLength, n, MaxWordLen)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}

	if !utf8.Valid(buf) {
		return "", ErrInvalidUTF8
	}

	return string(buf), nil
}

// WriteSentence writes the words followed by the terminating empty word
func WriteSentence(w io.Writer, words ...string) error {
	size := 1
	for _, word := range words {
		size += len(word) + 5
	}

	buf := make([]byte, 0, size)
	for _, word := range words {
		buf = append(buf, EncodeWord(word)...)
	}
	buf = append(buf, 0x00)

	_, err := w.Write(buf)
	return err
}

// ReadSentence reads words until the terminating empty word
func ReadSentence(r *bufio.Reader) ([]string, error) {
	var words []string
	for {
		word, err := DecodeWord(r)
		if err != nil {
			if err == io.EOF && len(words) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if word == "" {
			return words, nil
		}
		words = append(words, word)
	}
}
