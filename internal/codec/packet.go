package codec

import "math/bits"

// Packet is one compressed unit produced by an encoder.
//
// Data returned by a backend aliases the session's PacketBuffer and is valid
// until the next call on that session; use Clone to keep it longer.
type Packet struct {
	Data     []byte
	PTS      int64 // milliseconds
	DTS      int64 // milliseconds
	Keyframe bool
}

// Size returns the payload length in bytes.
func (p Packet) Size() int {
	return len(p.Data)
}

// Clone returns a packet that owns a private copy of its payload.
func (p Packet) Clone() Packet {
	out := p
	if p.Data != nil {
		out.Data = make([]byte, len(p.Data))
		copy(out.Data, p.Data)
	}
	return out
}

// PacketBuffer is a reusable byte buffer that only ever grows, to the next
// power of two at or above the largest unit seen.
type PacketBuffer struct {
	buf    []byte
	growth int
}

// NextPowerOfTwo returns the smallest power of two >= n. It returns 1 for n <= 1.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Fill copies src into the buffer, growing it first if needed, and returns
// the filled prefix.
func (b *PacketBuffer) Fill(src []byte) []byte {
	b.Reserve(len(src))
	n := copy(b.buf[:len(src)], src)
	return b.buf[:n]
}

// Reserve makes sure the capacity is at least n.
func (b *PacketBuffer) Reserve(n int) {
	if n <= len(b.buf) {
		return
	}
	b.buf = make([]byte, NextPowerOfTwo(n))
	b.growth++
}

// Cap returns the current capacity.
func (b *PacketBuffer) Cap() int {
	return len(b.buf)
}

// Growths returns how many times the buffer was reallocated.
func (b *PacketBuffer) Growths() int {
	return b.growth
}

// DecodedFrame is one GPU-resident picture produced by a decoder. The
// texture belongs to the decoder and stays valid until the next decode call.
type DecodedFrame struct {
	Texture uintptr
	Width   int
	Height  int
	Format  PixelFormat
}

// DecodeResult is the outcome of one decode call.
type DecodeResult struct {
	Frames []DecodedFrame
	// RefMissing is set when the decoder reported a picture whose reference
	// (by POC) was not found during this call. It describes this call only.
	RefMissing bool
}
