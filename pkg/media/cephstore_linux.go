//go:build ceph
// +build ceph

/*
Copyright 2018 The GoStor Authors All rights reserved.

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
	"fmt"
	"strings"

	"github.com/ceph/go-ceph/rados"
	"github.com/ceph/go-ceph/rbd"
	log "github.com/sirupsen/logrus"
)

// This ceph-rbd backend is only for linux
// path format: poolname/imagename
const CephBackingStorage = "ceph-rbd"

func init() {
	RegisterStore(CephBackingStorage, newCeph)
}

type CephStore struct {
	BaseStore
	poolName  string
	imageName string
	conn      *rados.Conn
	ioctx     *rados.IOContext
	image     *rbd.Image
}

func newCeph() (Store, error) {
	return &CephStore{
		BaseStore: BaseStore{Name: CephBackingStorage},
	}, nil
}

func (bs *CephStore) Open(path string) error {
	pathinfo := strings.SplitN(path, "/", 2)
	if len(pathinfo) != 2 {
		return fmt.Errorf("invalid device path string:%s", path)
	}
	bs.poolName = pathinfo[0]
	bs.imageName = pathinfo[1]
	log.Debugf("ceph path = %s", path)

	if conn, err := rados.NewConn(); err != nil {
		log.Error(err)
		return err
	} else {
		bs.conn = conn
	}
	if err := bs.conn.ReadDefaultConfigFile(); err != nil {
		log.Error(err)
		return err
	}
	if err := bs.conn.Connect(); err != nil {
		log.Error(err)
		return err
	}
	if ioctx, err := bs.conn.OpenIOContext(bs.poolName); err != nil {
		bs.conn.Shutdown()
		log.Error(err)
		return err
	} else {
		bs.ioctx = ioctx
	}

	if image := rbd.GetImage(bs.ioctx, bs.imageName); image == nil {
		err := fmt.Errorf("rbdGetImage failed:poolName:%s,imageName:%s",
			bs.poolName, bs.imageName)
		log.Error(err)
		return err
	} else {
		bs.image = image
	}
	if err := bs.image.Open(); err != nil {
		log.Error(err)
		return err
	}

	if dataSize, err := bs.image.GetSize(); err != nil {
		log.Error(err)
		return err
	} else {
		bs.DataSize = dataSize
	}
	return nil
}

func (bs *CephStore) Close() error {
	err := bs.image.Close()
	bs.ioctx.Destroy()
	bs.conn.Shutdown()
	return err
}

func (bs *CephStore) Size() uint64 {
	return bs.DataSize
}

func (bs *CephStore) ReadAt(p []byte, off int64) (int, error) {
	return bs.image.ReadAt(p, off)
}

func (bs *CephStore) WriteAt(p []byte, off int64) (int, error) {
	return bs.image.WriteAt(p, off)
}

func (bs *CephStore) Sync() error {
	return bs.image.Flush()
}
