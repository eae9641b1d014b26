// Package capturetest builds capture files for tests.
package capturetest

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/discochess/capdump/internal/codec"
)

// Packet is one record to write.
type Packet struct {
	Timestamp time.Time
	Data      []byte
}

// Packets returns n packets with distinct payloads, one microsecond apart.
func Packets(n int) []Packet {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pkts := make([]Packet, n)
	for i := range pkts {
		pkts[i] = Packet{
			Timestamp: base.Add(time.Duration(i) * time.Microsecond),
			Data:      []byte{'G', 'E', 'T', ' ', '/', byte('a' + i%26), 0x00, 0xff, '\n'},
		}
	}
	return pkts
}

func captureInfo(p Packet) gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     p.Timestamp,
		CaptureLength: len(p.Data),
		Length:        len(p.Data),
	}
}

// PcapNG returns a pcapng stream holding pkts on one Ethernet interface.
func PcapNG(tb testing.TB, pkts ...Packet) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w, err := pcapgo.NewNgWriter(&buf, layers.LinkTypeEthernet)
	if err != nil {
		tb.Fatalf("NewNgWriter() error = %v", err)
	}
	for _, p := range pkts {
		if err := w.WritePacket(captureInfo(p), p.Data); err != nil {
			tb.Fatalf("WritePacket() error = %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		tb.Fatalf("Flush() error = %v", err)
	}
	return buf.Bytes()
}

// Pcap returns a classic microsecond pcap stream holding pkts.
func Pcap(tb testing.TB, pkts ...Packet) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		tb.Fatalf("WriteFileHeader() error = %v", err)
	}
	for _, p := range pkts {
		if err := w.WritePacket(captureInfo(p), p.Data); err != nil {
			tb.Fatalf("WritePacket() error = %v", err)
		}
	}
	return buf.Bytes()
}

// Compress returns data compressed with c.
func Compress(tb testing.TB, c codec.Codec, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		tb.Fatalf("Writer() error = %v", err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

// SectionHeader returns a little endian pcapng section header block with no
// options.
func SectionHeader() []byte {
	b := binary.LittleEndian.AppendUint32(nil, 0x0a0d0d0a)
	b = binary.LittleEndian.AppendUint32(b, 28)
	b = binary.LittleEndian.AppendUint32(b, 0x1a2b3c4d)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint64(b, ^uint64(0))
	return binary.LittleEndian.AppendUint32(b, 28)
}

// InterfaceBlock returns a little endian pcapng Ethernet interface
// description block carrying the given if_tsresol value.
func InterfaceBlock(resolution byte) []byte {
	const length = 32
	b := binary.LittleEndian.AppendUint32(nil, 1)
	b = binary.LittleEndian.AppendUint32(b, length)
	b = binary.LittleEndian.AppendUint16(b, uint16(layers.LinkTypeEthernet))
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint16(b, 9) // if_tsresol
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = append(b, resolution, 0, 0, 0)
	b = binary.LittleEndian.AppendUint32(b, 0) // opt_endofopt
	return binary.LittleEndian.AppendUint32(b, length)
}

// Blocks returns the offsets of the blocks of type typ in a little endian
// pcapng stream.
func Blocks(data []byte, typ uint32) []int {
	var offsets []int
	for off := 0; off+8 <= len(data); {
		length := int(binary.LittleEndian.Uint32(data[off+4:]))
		if length < 12 {
			break
		}
		if binary.LittleEndian.Uint32(data[off:]) == typ {
			offsets = append(offsets, off)
		}
		off += length
	}
	return offsets
}
