package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CSVBytes is a byte blob carried on the wire as a string of
// comma-separated decimal values with a trailing comma: "1,2,3,".
// Message nonces use this form.
type CSVBytes []byte

// MarshalJSON implements json.Marshaler.
func (b CSVBytes) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	for _, v := range b {
		sb.WriteString(strconv.Itoa(int(v)))
		sb.WriteByte(',')
	}
	return json.Marshal(sb.String())
}

// UnmarshalJSON implements json.Unmarshaler. Empty segments are skipped so
// both "1,2,3" and "1,2,3," parse.
func (b *CSVBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*b = nil
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return fmt.Errorf("csv byte %q: %w", p, err)
		}
		out = append(out, byte(v))
	}
	*b = out
	return nil
}

// ByteSeq is a byte blob carried in JSON as an array of numbers rather
// than base64. Call ciphertext and call nonces use this form.
type ByteSeq []byte

// MarshalJSON implements json.Marshaler.
func (b ByteSeq) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	nums := make([]uint16, len(b))
	for i, v := range b {
		nums[i] = uint16(v)
	}
	return json.Marshal(nums)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteSeq) UnmarshalJSON(data []byte) error {
	var nums []uint16
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make([]byte, len(nums))
	for i, v := range nums {
		if v > 255 {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
