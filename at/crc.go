package at

import (
	"fmt"
	"strings"
)

const (
	crcPolynomial = 0x1021

	// CRCInitial is the preset used by the modem for both commands and
	// responses.
	CRCInitial uint16 = 0xFFFF
)

var crcTable = makeCRCTable()

func makeCRCTable() [256]uint16 {
	var table [256]uint16
	for b := range table {
		crc := uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		table[b] = crc
	}
	return table
}

// CRC16 computes the CRC-16/CCITT checksum of data starting from initial.
func CRC16(data []byte, initial uint16) uint16 {
	crc := initial
	for _, c := range data {
		tmp := (crc >> 8) ^ uint16(c)
		crc = (crc << 8) ^ crcTable[tmp&0xFF]
	}
	return crc
}

// Checksum returns the 4 upper-case hex digit CRC of s as used on the wire.
func Checksum(s string) string {
	return fmt.Sprintf("%04X", CRC16([]byte(s), CRCInitial))
}

// AppendCRC frames a command as <command>*HHHH.
func AppendCRC(cmd string) string {
	return cmd + CRCPrefix + Checksum(cmd)
}

// ValidateCRC reports whether suffix, with or without the leading '*', is
// the checksum of text.
func ValidateCRC(text, suffix string) bool {
	suffix = strings.TrimPrefix(strings.TrimSpace(suffix), CRCPrefix)
	return strings.EqualFold(Checksum(text), suffix)
}
