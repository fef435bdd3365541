/*
Copyright 2016 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package util provides some basic util functions.
package util

import "encoding/binary"

// CDB fields are big-endian per SBC; BOT wrapper fields are
// little-endian per the USB Mass Storage BOT specification.

func GetUnalignedUint16(u8 []uint8) uint16 {
	return binary.BigEndian.Uint16(u8)
}

func GetUnalignedUint32(u8 []uint8) uint32 {
	return binary.BigEndian.Uint32(u8)
}

func GetLittleEndianUint32(u8 []uint8) uint32 {
	return binary.LittleEndian.Uint32(u8)
}

func PutLittleEndianUint32(u8 []uint8, v uint32) {
	binary.LittleEndian.PutUint32(u8, v)
}

// StringToByte pads str to an align boundary, truncating at maxlength.
// SCSI INQUIRY identification fields are fixed-width ASCII.
func StringToByte(str string, align int, maxlength int) []byte {
	var (
		data   []byte
		data2  []byte
		length int
		d      int
	)

	data = []byte(str)
	length = len(data)
	d = align - (length % align)

	if (length + d) > maxlength {
		data = ([]byte(str))[0:maxlength]
		return data
	} else {
		data2 = make([]byte, length+d)
		copy(data2, data)
		return data2
	}
}
