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

import "os"

const FileBackingStorage = "file"

func init() {
	RegisterStore(FileBackingStorage, newFile)
}

// FileStore backs the namespace with a raw image file.
type FileStore struct {
	BaseStore
	file *os.File
}

func newFile() (Store, error) {
	return &FileStore{
		BaseStore: BaseStore{Name: FileBackingStorage},
	}, nil
}

func (bs *FileStore) Open(path string) error {
	finfo, err := os.Stat(path)
	if err != nil {
		return err
	}
	bs.DataSize = uint64(finfo.Size())

	f, err := os.OpenFile(path, os.O_RDWR, os.ModePerm)
	bs.file = f
	return err
}

func (bs *FileStore) Close() error {
	return bs.file.Close()
}

func (bs *FileStore) Size() uint64 {
	return bs.DataSize
}

func (bs *FileStore) ReadAt(p []byte, off int64) (int, error) {
	return bs.file.ReadAt(p, off)
}

func (bs *FileStore) WriteAt(p []byte, off int64) (int, error) {
	return bs.file.WriteAt(p, off)
}

func (bs *FileStore) Sync() error {
	return bs.file.Sync()
}
