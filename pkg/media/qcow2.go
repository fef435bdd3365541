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

package media

import (
	"github.com/dypflying/go-qcow2lib/qcow2"
	log "github.com/sirupsen/logrus"
)

const Qcow2BackingStorage = "qcow2"

func init() {
	RegisterStore(Qcow2BackingStorage, newQcow2)
}

// Qcow2Store backs the namespace with a qcow2 image.
type Qcow2Store struct {
	BaseStore
	child *qcow2.BdrvChild
}

func newQcow2() (Store, error) {
	return &Qcow2Store{
		BaseStore: BaseStore{Name: Qcow2BackingStorage},
	}, nil
}

func (bs *Qcow2Store) Open(path string) error {
	var err error
	var openOpts = map[string]any{
		qcow2.OPT_FILENAME: path,
		qcow2.OPT_FMT:      "qcow2",
	}
	log.Debugf("open qcow2 path = %s", path)
	if bs.child, err = qcow2.Blk_Open(path, openOpts, qcow2.BDRV_O_RDWR); err != nil {
		return err
	}
	if bs.DataSize, err = qcow2.Blk_Getlength(bs.child); err != nil {
		return err
	}
	return nil
}

func (bs *Qcow2Store) Close() error {
	qcow2.Blk_Close(bs.child)
	return nil
}

func (bs *Qcow2Store) Size() uint64 {
	return bs.DataSize
}

func (bs *Qcow2Store) ReadAt(p []byte, off int64) (int, error) {
	n, err := qcow2.Blk_Pread(bs.child, uint64(off), p, uint64(len(p)))
	return int(n), err
}

func (bs *Qcow2Store) WriteAt(p []byte, off int64) (int, error) {
	n, err := qcow2.Blk_Pwrite(bs.child, uint64(off), p, uint64(len(p)), 0)
	return int(n), err
}

func (bs *Qcow2Store) Sync() error {
	return nil
}
