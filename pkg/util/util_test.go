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
package util

import (
	"bytes"
	"testing"
)

func TestByteOrderHelpers(t *testing.T) {
	if got := GetUnalignedUint16([]byte{0x12, 0x34}); got != 0x1234 {
		t.Fatalf("GetUnalignedUint16 = %#x", got)
	}
	if got := GetUnalignedUint32([]byte{0x12, 0x34, 0x56, 0x78}); got != 0x12345678 {
		t.Fatalf("GetUnalignedUint32 = %#x", got)
	}

	b := make([]byte, 4)
	PutLittleEndianUint32(b, 0xdeadbeef)
	if !bytes.Equal(b, []byte{0xef, 0xbe, 0xad, 0xde}) {
		t.Fatalf("PutLittleEndianUint32 = % x", b)
	}
	if got := GetLittleEndianUint32(b); got != 0xdeadbeef {
		t.Fatalf("GetLittleEndianUint32 = %#x", got)
	}
}

func TestStringToByte(t *testing.T) {
	cases := map[string]struct {
		str       string
		align     int
		maxlength int
		want      []byte
	}{
		"ZeroPadded": {"GOSTOR", 8, 8, []byte("GOSTOR\x00\x00")},
		"Exact":      {"ABCD", 4, 4, []byte("ABCD")},
		"Truncated":  {"LONGVENDOR", 8, 8, []byte("LONGVEND")},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if got := StringToByte(c.str, c.align, c.maxlength); !bytes.Equal(got, c.want) {
				t.Fatalf("StringToByte(%q) = %q, want %q", c.str, got, c.want)
			}
		})
	}
}
