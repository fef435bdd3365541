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

// Status transmit block register offsets, relative to the configured
// base. The CSW leaves through this window using the same
// trigger/poll idiom as the command and DMA engines.

const (
	RegTxData   = 0x00 // response buffer data window (W)
	RegTxLen    = 0x01 // response length (W)
	RegTxCtrl   = 0x02 // transmit control (RW)
	RegTxStatus = 0x03 // transmit status (RW)
	RegTxReset  = 0x04 // response buffer pointer rewind strobe (W)
)

const (
	BitTxTrigger = 1 << 0 // RegTxCtrl: transmit trigger
	BitTxBusy    = 1 << 0 // RegTxStatus: cleared by firmware after trigger
)
