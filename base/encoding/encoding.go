// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"strconv"

	"github.com/juju/errors"
)

// maxLength guards length prefixes read from a corrupted stream.
const maxLength = 1 << 30

// WriteMatrix writes a matrix to byte stream. Row and column counts are written first.
func WriteMatrix(w io.Writer, m [][]float32) error {
	cols := 0
	if len(m) > 0 {
		cols = len(m[0])
	}
	if err := binary.Write(w, binary.LittleEndian, [2]int32{int32(len(m)), int32(cols)}); err != nil {
		return errors.Trace(err)
	}
	for i := range m {
		if len(m[i]) != cols {
			return errors.Errorf("ragged matrix: row %d has %d columns, expect %d", i, len(m[i]), cols)
		}
		if err := binary.Write(w, binary.LittleEndian, m[i]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadMatrix reads a matrix written by WriteMatrix.
func ReadMatrix(r io.Reader) ([][]float32, error) {
	var shape [2]int32
	if err := binary.Read(r, binary.LittleEndian, &shape); err != nil {
		return nil, errors.Trace(err)
	}
	if shape[0] < 0 || shape[1] < 0 || int64(shape[0])*int64(shape[1]) > maxLength {
		return nil, errors.Errorf("invalid matrix shape %dx%d", shape[0], shape[1])
	}
	m := make([][]float32, shape[0])
	for i := range m {
		m[i] = make([]float32, shape[1])
		if err := binary.Read(r, binary.LittleEndian, m[i]); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return m, nil
}

// WriteSlice writes a length-prefixed slice of fixed-size numbers to byte stream.
func WriteSlice[T int32 | int64 | float32 | float64](w io.Writer, v []T) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(v))); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// ReadSlice reads a slice written by WriteSlice.
func ReadSlice[T int32 | int64 | float32 | float64](r io.Reader) ([]T, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 || length > maxLength {
		return nil, errors.Errorf("invalid slice length %d", length)
	}
	v := make([]T, length)
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return nil, errors.Trace(err)
	}
	return v, nil
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	err := binary.Write(w, binary.LittleEndian, int32(len(s)))
	if err != nil {
		return errors.Trace(err)
	}
	n, err := w.Write(s)
	if err != nil {
		return errors.Trace(err)
	} else if n != len(s) {
		return errors.New("fail to write string")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 || length > maxLength {
		return nil, errors.Errorf("invalid bytes length %d", length)
	}
	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v interface{}) error {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(v)
	if err != nil {
		return errors.Trace(err)
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v interface{}) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	return errors.Trace(decoder.Decode(v))
}

func FormatFloat32(val float32) string {
	return strconv.FormatFloat(float64(val), 'f', -1, 32)
}
