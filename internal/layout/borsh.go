package layout

import (
	"encoding/binary"
	"fmt"

	"solana-nft-indexer/internal/solana"
)

// borshReader reads little-endian borsh primitives from a byte slice.
type borshReader struct {
	data []byte
	pos  int
}

func newBorshReader(data []byte) *borshReader {
	return &borshReader{data: data}
}

func (r *borshReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *borshReader) need(n int) error {
	if n < 0 || r.remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrInvalidMetadata, n, r.pos, r.remaining())
	}
	return nil
}

func (r *borshReader) readU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *borshReader) readBool() (bool, error) {
	v, err := r.readU8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("%w: bool byte %d at offset %d", ErrInvalidMetadata, v, r.pos-1)
	}
	return v == 1, nil
}

func (r *borshReader) readU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *borshReader) readU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *borshReader) readU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *borshReader) readPubkey() (solana.PublicKey, error) {
	var pk solana.PublicKey
	if err := r.need(solana.PublicKeySize); err != nil {
		return pk, err
	}
	copy(pk[:], r.data[r.pos:r.pos+solana.PublicKeySize])
	r.pos += solana.PublicKeySize
	return pk, nil
}

func (r *borshReader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.remaining()) {
		return "", fmt.Errorf("%w: string length %d exceeds remaining %d", ErrInvalidMetadata, n, r.remaining())
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// readOption reads a borsh Option tag.
func (r *borshReader) readOption() (bool, error) {
	return r.readBool()
}

// borshWriter is the encoding counterpart used to build metadata accounts.
type borshWriter struct {
	buf []byte
}

func (w *borshWriter) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *borshWriter) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *borshWriter) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *borshWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *borshWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *borshWriter) pubkey(pk solana.PublicKey) { w.buf = append(w.buf, pk[:]...) }

func (w *borshWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}
