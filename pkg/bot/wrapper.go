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
	"fmt"

	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/util"
)

// USB Mass Storage Bulk-Only Transport wrappers. Both structures are
// bit-exact wire formats; all multi-byte fields are little-endian.

const (
	// CBWLength is the exact host-to-device wrapper size.
	CBWLength = 31
	// CSWLength is the exact device-to-host wrapper size.
	CSWLength = 13
	// CBWCBMaxLength bounds the command block inside a CBW.
	CBWCBMaxLength = 16
)

var (
	cbwSignature = [4]byte{'U', 'S', 'B', 'C'}
	cswSignature = [4]byte{'U', 'S', 'B', 'S'}
)

// CBW direction flag: bit 7 set means device-to-host (IN).
const CBWFlagDataIn = 0x80

// CSW status codes.
const (
	CSWStatusPass       byte = 0x00
	CSWStatusFail       byte = 0x01
	CSWStatusPhaseError byte = 0x02
)

// CBW is a Command Block Wrapper.
type CBW struct {
	Tag                uint32
	DataTransferLength uint32
	Flags              byte
	LUN                byte
	CDBLength          byte
	CDB                [CBWCBMaxLength]byte
}

// UnmarshalBinary decodes a 31-byte CBW. The leading 'U' is the
// transport's resynchronization check; the remaining signature bytes
// are verified here. A bad signature is a protocol desynchronization
// and produces no CSW.
func (c *CBW) UnmarshalBinary(b []byte) error {
	if len(b) != CBWLength {
		return fmt.Errorf("invalid CBW size %d != %d", len(b), CBWLength)
	}
	if b[1] != cbwSignature[1] || b[2] != cbwSignature[2] || b[3] != cbwSignature[3] {
		return api.ErrInvalidSignature
	}

	c.Tag = util.GetLittleEndianUint32(b[4:8])
	c.DataTransferLength = util.GetLittleEndianUint32(b[8:12])
	c.Flags = b[12]
	c.LUN = b[13] & 0x0f
	c.CDBLength = b[14]
	copy(c.CDB[:], b[15:31])

	if c.CDBLength < 1 || c.CDBLength > CBWCBMaxLength {
		return fmt.Errorf("invalid command block length %d", c.CDBLength)
	}
	return nil
}

// MarshalBinary encodes a CBW; used by the loopback transport and
// tests.
func (c *CBW) MarshalBinary() ([]byte, error) {
	if c.CDBLength < 1 || c.CDBLength > CBWCBMaxLength {
		return nil, fmt.Errorf("invalid command block length %d", c.CDBLength)
	}
	b := make([]byte, CBWLength)
	copy(b[0:4], cbwSignature[:])
	util.PutLittleEndianUint32(b[4:8], c.Tag)
	util.PutLittleEndianUint32(b[8:12], c.DataTransferLength)
	b[12] = c.Flags
	b[13] = c.LUN & 0x0f
	b[14] = c.CDBLength
	copy(b[15:31], c.CDB[:])
	return b, nil
}

// DirectionIn reports whether the host expects device-to-host data.
func (c *CBW) DirectionIn() bool {
	return c.Flags&CBWFlagDataIn != 0
}

// CSW is a Command Status Wrapper. Tag is copied verbatim from the
// CBW; DataResidue counts the requested bytes that never moved.
type CSW struct {
	Tag         uint32
	DataResidue uint32
	Status      byte
}

// MarshalBinary encodes the 13-byte CSW.
func (c *CSW) MarshalBinary() ([]byte, error) {
	b := make([]byte, CSWLength)
	copy(b[0:4], cswSignature[:])
	util.PutLittleEndianUint32(b[4:8], c.Tag)
	util.PutLittleEndianUint32(b[8:12], c.DataResidue)
	b[12] = c.Status
	return b, nil
}

// UnmarshalBinary decodes a CSW; used by the admin tooling and tests.
func (c *CSW) UnmarshalBinary(b []byte) error {
	if len(b) != CSWLength {
		return fmt.Errorf("invalid CSW size %d != %d", len(b), CSWLength)
	}
	for i := range cswSignature {
		if b[i] != cswSignature[i] {
			return api.ErrInvalidSignature
		}
	}
	c.Tag = util.GetLittleEndianUint32(b[4:8])
	c.DataResidue = util.GetLittleEndianUint32(b[8:12])
	c.Status = b[12]
	return nil
}
