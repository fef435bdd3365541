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

// Package hw provides the byte-wide register access capability shared
// by the command and DMA engines, plus a bounded busy-wait poller.
package hw

// Registers is the memory-mapped register capability consumed by every
// engine. Implementations must preserve write ordering: a Write8 call
// is observed by the device before any later call returns.
type Registers interface {
	Read8(addr uint16) byte
	Write8(addr uint16, val byte)
}

// SetBits read-modify-writes a register, setting mask bits.
func SetBits(r Registers, addr uint16, mask byte) {
	r.Write8(addr, r.Read8(addr)|mask)
}

// ClearBits read-modify-writes a register, clearing mask bits.
func ClearBits(r Registers, addr uint16, mask byte) {
	r.Write8(addr, r.Read8(addr)&^mask)
}

// TestBits reports whether all mask bits are set.
func TestBits(r Registers, addr uint16, mask byte) bool {
	return r.Read8(addr)&mask == mask
}
