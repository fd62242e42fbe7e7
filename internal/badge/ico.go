package badge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
)

// imageToICO wraps a single PNG-encoded image in an ICO container:
// a 6-byte ICONDIR header, one 16-byte ICONDIRENTRY, then the PNG data
// at offset 22.
func imageToICO(img image.Image) ([]byte, error) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encoding badge png for ico: %w", err)
	}
	pngData := pngBuf.Bytes()

	var buf bytes.Buffer
	// ICONDIR: reserved, type (1 = icon), image count.
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))

	bounds := img.Bounds()
	buf.WriteByte(icoDimension(bounds.Dx()))
	buf.WriteByte(icoDimension(bounds.Dy()))
	// No palette, reserved byte.
	buf.WriteByte(0)
	buf.WriteByte(0)
	// Color planes and bits per pixel.
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32))
	// #nosec G115 -- PNG size is limited by memory and will not overflow uint32
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22))

	buf.Write(pngData)
	return buf.Bytes(), nil
}

// icoDimension encodes a pixel dimension for an ICONDIRENTRY, where a
// zero byte means 256.
func icoDimension(px int) byte {
	if px >= 256 {
		return 0
	}
	return byte(px)
}
