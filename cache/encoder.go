package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Cache values are length-prefixed, self-describing binary records so the
// retention store can be shared across deployments without schema
// negotiation: one format version byte, one record tag byte, then uvarint
// length-prefixed fields.
const (
	recordVersion = 0x01

	recordTagReceiptTx = 0x01
)

// Codec errors
var (
	// ErrBadRecord indicates a value that is not a well-formed cache record
	ErrBadRecord = errors.New("malformed cache record")

	// ErrWrongRecordTag indicates a record of an unexpected type
	ErrWrongRecordTag = errors.New("unexpected cache record tag")
)

// encodeReceiptRecord renders a receipt -> transaction mapping value.
func encodeReceiptRecord(txHash string) []byte {
	buf := make([]byte, 0, 2+binary.MaxVarintLen64+len(txHash))
	buf = append(buf, recordVersion, recordTagReceiptTx)
	buf = binary.AppendUvarint(buf, uint64(len(txHash)))
	buf = append(buf, txHash...)
	return buf
}

// decodeReceiptRecord parses a receipt -> transaction mapping value.
func decodeReceiptRecord(value []byte) (string, error) {
	if len(value) < 2 {
		return "", fmt.Errorf("%w: %d bytes", ErrBadRecord, len(value))
	}
	if value[0] != recordVersion {
		return "", fmt.Errorf("%w: version 0x%02x", ErrBadRecord, value[0])
	}
	if value[1] != recordTagReceiptTx {
		return "", fmt.Errorf("%w: 0x%02x", ErrWrongRecordTag, value[1])
	}

	rest := value[2:]
	n, read := binary.Uvarint(rest)
	if read <= 0 || uint64(len(rest)-read) < n {
		return "", fmt.Errorf("%w: truncated payload", ErrBadRecord)
	}
	return string(rest[read : read+int(n)]), nil
}
