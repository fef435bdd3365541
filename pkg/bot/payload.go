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

// SCSI data-in payload builders for the non-data opcodes.
package bot

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/util"
)

// opInquiry builds standard INQUIRY data: direct access block device,
// removable, SPC-3 compliant.
func opInquiry(t *Translator, cmd *Command) BOTStat {
	length := int(cmd.CBW.DataTransferLength)
	if length == 0 {
		return BOTStatPass
	}

	data := make([]byte, 5)
	data[0] = 0x00
	data[1] = 0x80
	data[2] = 0x05
	data[3] = 0x02
	data[4] = byte(36 - 5)

	// unused or obsolete flags
	data = append(data, make([]byte, 3)...)
	data = append(data, util.StringToByte(VendorID, 8, 8)...)
	data = append(data, util.StringToByte(ProductID, 16, 16)...)
	data = append(data, util.StringToByte(ProductRevision, 4, 4)...)

	if length > len(data) {
		data = append(data, make([]byte, length-len(data))...)
	} else {
		data = data[0:length]
	}
	cmd.In = data
	return BOTStatPass
}

// opRequestSense returns fixed-format sense data with no pending
// sense: the bridge reports all failures through the CSW.
func opRequestSense(t *Translator, cmd *Command) BOTStat {
	data := make([]byte, 18)

	// error code: current, fixed format
	data[0] = 0x70
	// no specific sense key
	data[2] = 0x00
	// additional sense length
	data[7] = byte(len(data) - 1 - 7)
	// no additional sense code or qualifier
	data[12] = 0x00

	cmd.In = data
	return BOTStatPass
}

// opModeSense is unsupported beyond an empty parameter header.
func opModeSense(t *Translator, cmd *Command) BOTStat {
	length := int(cmd.CBW.DataTransferLength)
	if length == 0 {
		return BOTStatPass
	}
	data := make([]byte, length)
	data[0] = byte(length)
	cmd.In = data
	return BOTStatPass
}

// opReportLuns reports the single logical unit using first-level
// addressing.
func opReportLuns(t *Translator, cmd *Command) BOTStat {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.BigEndian, uint32(8))
	buf.Write(make([]byte, 4))

	// LUN 0, first level addressing only
	buf.WriteByte(0x00)
	binary.Write(buf, binary.BigEndian, uint8(0))
	buf.Write(make([]byte, 6))

	cmd.In = buf.Bytes()
	return BOTStatPass
}

// opReadCapacity10 returns the last LBA and the block length.
func opReadCapacity10(t *Translator, cmd *Command) BOTStat {
	if t.lu.Blocks == 0 {
		return BOTStat{CSWStatusFail, errors.New("logical unit has no capacity")}
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, t.lu.Blocks-1)
	binary.Write(buf, binary.BigEndian, uint32(t.lu.BlockSize()))
	cmd.In = buf.Bytes()
	return BOTStatPass
}

// opServiceAction dispatches the SERVICE ACTION IN(16) actions; only
// READ CAPACITY(16) is implemented.
func opServiceAction(t *Translator, cmd *Command) BOTStat {
	if cmd.SCB[1]&0x1f != api.SAI_READ_CAPACITY_16 {
		return BOTStat{CSWStatusFail, BOTStatFail.Err}
	}
	if t.lu.Blocks == 0 {
		return BOTStat{CSWStatusFail, BOTStatFail.Err}
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint64(t.lu.Blocks)-1)
	binary.Write(buf, binary.BigEndian, uint64(t.lu.BlockSize()))
	data := buf.Bytes()
	// pad to the 32-byte parameter data length
	data = append(data, make([]byte, 32-len(data))...)

	cmd.In = data
	return BOTStatPass
}

// opReadFormatCapacities returns the current/maximum capacity
// descriptor for formatted media.
func opReadFormatCapacities(t *Translator, cmd *Command) BOTStat {
	buf := new(bytes.Buffer)

	// capacity list length
	binary.Write(buf, binary.BigEndian, uint32(8))
	// number of blocks
	binary.Write(buf, binary.BigEndian, t.lu.Blocks)
	// descriptor code: formatted media | block length
	binary.Write(buf, binary.BigEndian, uint32(0b10<<24|uint32(t.lu.BlockSize())&0xffffff))

	cmd.In = buf.Bytes()
	return BOTStatPass
}
