/*
Copyright 2017 The GoStor Authors All rights reserved.

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

package bot

import (
	"errors"
	"testing"

	"github.com/gostor/gobridge/pkg/api"
)

func TestCBWUnmarshal(t *testing.T) {
	valid := func() []byte {
		b := make([]byte, CBWLength)
		copy(b, "USBC")
		b[4], b[5], b[6], b[7] = 0x78, 0x56, 0x34, 0x12
		b[8], b[9] = 0x00, 0x02 // 512
		b[12] = CBWFlagDataIn
		b[13] = 0x00
		b[14] = 10
		b[15] = 0x28
		return b
	}

	cases := map[string]struct {
		mutate    func([]byte) []byte
		expectSig bool
		expectErr bool
	}{
		"Valid": {mutate: func(b []byte) []byte { return b }},
		"ShortBuffer": {
			mutate:    func(b []byte) []byte { return b[:30] },
			expectErr: true,
		},
		"LongBuffer": {
			mutate:    func(b []byte) []byte { return append(b, 0) },
			expectErr: true,
		},
		"BadSignature": {
			mutate:    func(b []byte) []byte { b[2] = 'X'; return b },
			expectSig: true,
			expectErr: true,
		},
		// Byte 0 is the transport's resynchronization byte; the decoder
		// only checks the remaining three.
		"LeadingByteIgnored": {
			mutate: func(b []byte) []byte { b[0] = 0x00; return b },
		},
		"ZeroCDBLength": {
			mutate:    func(b []byte) []byte { b[14] = 0; return b },
			expectErr: true,
		},
		"OversizeCDBLength": {
			mutate:    func(b []byte) []byte { b[14] = 17; return b },
			expectErr: true,
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			cbw := &CBW{}
			err := cbw.UnmarshalBinary(c.mutate(valid()))
			if c.expectSig && !errors.Is(err, api.ErrInvalidSignature) {
				t.Fatalf("err = %v, want ErrInvalidSignature", err)
			}
			if c.expectErr {
				if err == nil {
					t.Fatal("decode accepted")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if cbw.Tag != 0x12345678 {
				t.Fatalf("tag = %#x", cbw.Tag)
			}
			if cbw.DataTransferLength != 512 {
				t.Fatalf("transfer length = %d", cbw.DataTransferLength)
			}
			if !cbw.DirectionIn() {
				t.Fatal("direction flag lost")
			}
			if cbw.CDBLength != 10 || cbw.CDB[0] != 0x28 {
				t.Fatalf("cdb = %d %#x", cbw.CDBLength, cbw.CDB[0])
			}
		})
	}
}

func TestCBWRoundTrip(t *testing.T) {
	in := &CBW{
		Tag:                0xdeadbeef,
		DataTransferLength: 4096,
		Flags:              CBWFlagDataIn,
		LUN:                3,
		CDBLength:          16,
	}
	in.CDB[0] = 0x9e
	in.CDB[1] = 0x10

	b, err := in.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	out := &CBW{}
	if err := out.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestCSWRoundTrip(t *testing.T) {
	in := &CSW{Tag: 0x0badcafe, DataResidue: 512, Status: CSWStatusPhaseError}

	b, err := in.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != CSWLength {
		t.Fatalf("length = %d", len(b))
	}
	if string(b[0:4]) != "USBS" {
		t.Fatalf("signature = %q", b[0:4])
	}

	out := &CSW{}
	if err := out.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}

	b[1] = 'X'
	if err := out.UnmarshalBinary(b); !errors.Is(err, api.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}
