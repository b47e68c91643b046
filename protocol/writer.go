package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// Marshaler is implemented by every message that can be sent.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Write marshals m and writes it to w in a single call.
func Write(w io.Writer, m Marshaler) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}

	_, err = w.Write(b)
	return err
}

// EncodeLatin1 converts s to ISO-8859-1, the character set RFB uses for
// desktop names and cut text.
func EncodeLatin1(s string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", s, ErrNotLatin1)
	}

	return b, nil
}

// DecodeLatin1 converts ISO-8859-1 bytes to a UTF-8 string.
func DecodeLatin1(b []byte) string {
	// Every byte is a valid ISO-8859-1 character, so this cannot fail.
	s, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(s)
}

func marshalCutText(t MessageType, text string) ([]byte, error) {
	latin1, err := EncodeLatin1(text)
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, 8+len(latin1))
	b = append(b, byte(t), 0, 0, 0)
	b = binary.BigEndian.AppendUint32(b, uint32(len(latin1)))
	return append(b, latin1...), nil
}
