package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

const (
	flagActive = 1 << 0
)

func writeString(buf *bytes.Buffer, field, value string) error {
	if len(value) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(value)))
	buf.WriteString(value)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	length, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := writeString(&buf, "credentialID", s.CredentialID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "tokenPrefix", s.TokenPrefix); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "deviceInfo", s.DeviceInfo); err != nil {
		return nil, err
	}
	if err := writeString(&buf, "ipAddress", s.IPAddress); err != nil {
		return nil, err
	}

	var flags byte
	if s.Active {
		flags |= flagActive
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.RevokedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActiveAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	if s.CredentialID, err = readString(reader); err != nil {
		return nil, err
	}
	if s.TokenPrefix, err = readString(reader); err != nil {
		return nil, err
	}
	if s.DeviceInfo, err = readString(reader); err != nil {
		return nil, err
	}
	if s.IPAddress, err = readString(reader); err != nil {
		return nil, err
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Active = flags&flagActive != 0

	if err := binary.Read(reader, binary.BigEndian, &s.RevokedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastActiveAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}
