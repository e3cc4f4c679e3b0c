//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package pagestore

import (
	"os"

	"github.com/weaviate/nativeindex/entities/diskio"
)

// FileSystem is the small set of file primitives the store and its owners
// need. Paths are always the full path of a single index file.
type FileSystem interface {
	FileExists(path string) (bool, error)
	// Remove deletes the file, a missing file is not an error.
	Remove(path string) error
	MkdirAll(dir string) error
}

type OSFileSystem struct{}

func (OSFileSystem) FileExists(path string) (bool, error) {
	return diskio.FileExists(path)
}

func (OSFileSystem) Remove(path string) error {
	_, err := diskio.RemoveIfExists(path)
	return err
}

func (OSFileSystem) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o777)
}
