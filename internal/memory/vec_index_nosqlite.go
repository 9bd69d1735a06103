//go:build !(sqlite_vec && cgo)

package memory

import "errors"

func newSQLiteVecIndex(dims int) (VectorIndex, error) {
	return nil, errors.New("sqlite-vec index requires building with -tags sqlite_vec and cgo")
}
