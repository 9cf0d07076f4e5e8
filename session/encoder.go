package session

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	sessionFormatVersionV1 = 1

	flagStaff byte = 1 << 0

	// version(1) userID(8) flags(1) createdAt(8) expiresAt(8)
	encodedLenV1 = 1 + 8 + 1 + 8 + 8
)

var ErrInvalidEncoding = errors.New("invalid session encoding")

// Encode serializes s without its SessionID, which is the Redis key.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.UserID <= 0 {
		return nil, errors.New("session user id must be positive")
	}

	var buf bytes.Buffer
	buf.Grow(encodedLenV1)

	buf.WriteByte(sessionFormatVersionV1)
	_ = binary.Write(&buf, binary.BigEndian, s.UserID)

	var flags byte
	if s.Staff {
		flags |= flagStaff
	}
	buf.WriteByte(flags)

	_ = binary.Write(&buf, binary.BigEndian, s.CreatedAt)
	_ = binary.Write(&buf, binary.BigEndian, s.ExpiresAt)

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, ErrInvalidEncoding
	}
	if data[0] != sessionFormatVersionV1 {
		return nil, errors.New("unsupported session version")
	}
	if len(data) != encodedLenV1 {
		return nil, ErrInvalidEncoding
	}

	s := &Session{
		UserID:    int64(binary.BigEndian.Uint64(data[1:9])),
		Staff:     data[9]&flagStaff != 0,
		CreatedAt: int64(binary.BigEndian.Uint64(data[10:18])),
		ExpiresAt: int64(binary.BigEndian.Uint64(data[18:26])),
	}
	if s.UserID <= 0 {
		return nil, ErrInvalidEncoding
	}
	return s, nil
}
