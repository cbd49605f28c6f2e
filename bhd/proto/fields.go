/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package proto

import (
	"fmt"
	"math"
	"reflect"

	"github.com/ugorji/go/codec"

	"mynewt.apache.org/blehostd/bhd/bledefs"
)

// Describes a header or body field that could not be decoded.  Status is the
// code reported in the error response.
type FieldError struct {
	Status int
	Field  string
}

func (e *FieldError) Error() string {
	return "invalid " + e.Field
}

func (e *FieldError) String() string {
	return fmt.Sprintf("%s (status=%d)", e.Error(), e.Status)
}

func missingField(name string) *FieldError {
	return &FieldError{bledefs.SYS_ENOENT, name}
}

func badField(name string) *FieldError {
	return &FieldError{bledefs.SYS_ERANGE, name}
}

func invalField(name string) *FieldError {
	return &FieldError{bledefs.SYS_EINVAL, name}
}

// A decoded JSON object.
type Fields map[string]interface{}

var jsonHandle = func() *codec.JsonHandle {
	h := new(codec.JsonHandle)
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	h.SignedInteger = true
	return h
}()

// Parses a JSON document into a generic tree.  A well-formed document that
// is not an object yields an empty set of fields.
func ParseFields(data []byte) (Fields, *FieldError) {
	var v interface{}
	if err := codec.NewDecoderBytes(data, jsonHandle).Decode(&v); err != nil {
		return nil, badField("json")
	}

	m, ok := asMap(v)
	if !ok {
		return Fields{}, nil
	}
	return m, nil
}

func asMap(v interface{}) (Fields, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return Fields(m), true
	case Fields:
		return m, true
	case map[interface{}]interface{}:
		f := make(Fields, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			f[ks] = val
		}
		return f, true
	default:
		return nil, false
	}
}

// Converts a decoded number to an int64.  Non-integral and out of range
// values are rejected.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// Reads typed values out of a Fields object.  The first failure is
// remembered and every later read becomes a no-op, so a decoder can read all
// of its fields and check Err() once.
type FieldReader struct {
	f      Fields
	prefix string
	err    *FieldError
}

func NewFieldReader(f Fields) *FieldReader {
	return &FieldReader{f: f}
}

// Creates a reader for a nested object.  Field names in errors are qualified
// with the given prefix ("characteristic uuid").
func (r *FieldReader) Nested(f Fields, prefix string) *FieldReader {
	return &FieldReader{f: f, prefix: prefix}
}

func (r *FieldReader) Err() *FieldError {
	return r.err
}

func (r *FieldReader) name(field string) string {
	if r.prefix == "" {
		return field
	}
	return r.prefix + " " + field
}

func (r *FieldReader) fail(fe *FieldError) {
	if r.err == nil {
		r.err = fe
	}
}

// Records a semantic violation against the named field.
func (r *FieldReader) Invalid(field string) {
	r.fail(invalField(r.name(field)))
}

// Records an out of range value against the named field.
func (r *FieldReader) Bad(field string) {
	r.fail(badField(r.name(field)))
}

func (r *FieldReader) Has(field string) bool {
	if r.err != nil {
		return false
	}
	_, ok := r.f[field]
	return ok
}

func (r *FieldReader) get(field string) (interface{}, bool) {
	if r.err != nil {
		return nil, false
	}

	v, ok := r.f[field]
	if !ok {
		r.fail(missingField(r.name(field)))
		return nil, false
	}

	return v, true
}

func (r *FieldReader) Int(field string, min int64, max int64) int64 {
	v, ok := r.get(field)
	if !ok {
		return 0
	}

	n, ok := toInt64(v)
	if !ok || n < min || n > max {
		r.Bad(field)
		return 0
	}

	return n
}

func (r *FieldReader) Uint8(field string) uint8 {
	return uint8(r.Int(field, 0, math.MaxUint8))
}

func (r *FieldReader) Uint16(field string) uint16 {
	return uint16(r.Int(field, 0, math.MaxUint16))
}

func (r *FieldReader) Bool(field string) bool {
	v, ok := r.get(field)
	if !ok {
		return false
	}

	b, ok := v.(bool)
	if !ok {
		r.Bad(field)
		return false
	}

	return b
}

func (r *FieldReader) String(field string) string {
	v, ok := r.get(field)
	if !ok {
		return ""
	}

	s, ok := v.(string)
	if !ok {
		r.Bad(field)
		return ""
	}

	return s
}

// Reads a byte string of at most maxLen bytes.
func (r *FieldReader) Bytes(field string, maxLen int) bledefs.BleBytes {
	s := r.String(field)
	if r.err != nil {
		return nil
	}

	bb, err := bledefs.ParseBleBytes(s, maxLen)
	if err != nil {
		r.Bad(field)
		return nil
	}

	return bb
}

func (r *FieldReader) Addr(field string) bledefs.BleAddr {
	s := r.String(field)
	if r.err != nil {
		return bledefs.BleAddr{}
	}

	addr, err := bledefs.ParseBleAddr(s)
	if err != nil {
		r.Bad(field)
		return bledefs.BleAddr{}
	}

	return addr
}

// A UUID is either a number in [1, 0xffff] or the 36-character text form of
// a 128-bit UUID.
func (r *FieldReader) Uuid(field string) bledefs.BleUuid {
	v, ok := r.get(field)
	if !ok {
		return bledefs.BleUuid{}
	}

	if n, ok := toInt64(v); ok {
		if n < 1 || n > 0xffff {
			r.Bad(field)
			return bledefs.BleUuid{}
		}
		return bledefs.NewBleUuid16(uint16(n))
	}

	s, ok := v.(string)
	if !ok {
		r.Bad(field)
		return bledefs.BleUuid{}
	}

	u128, err := bledefs.ParseUuid128(s)
	if err != nil {
		r.Bad(field)
		return bledefs.BleUuid{}
	}

	return bledefs.NewBleUuid128(u128)
}

// Reads a symbolic name and resolves it through the given table.
func (r *FieldReader) Sym(field string, t *bledefs.SymTable) int {
	s := r.String(field)
	if r.err != nil {
		return 0
	}

	code, err := t.Decode(s)
	if err != nil {
		r.Bad(field)
		return 0
	}

	return code
}

func (r *FieldReader) AddrType(field string) bledefs.BleAddrType {
	return bledefs.BleAddrType(r.Sym(field, bledefs.BleAddrTypeTable))
}

// Reads an array.  Each element is passed to fn along with its index; the
// array may hold no more than maxElems elements.
func (r *FieldReader) Array(field string, maxElems int,
	fn func(i int, v interface{})) int {

	v, ok := r.get(field)
	if !ok {
		return 0
	}

	arr, ok := v.([]interface{})
	if !ok || len(arr) > maxElems {
		r.Bad(field)
		return 0
	}

	for i, elem := range arr {
		if r.err != nil {
			break
		}
		fn(i, elem)
	}

	return len(arr)
}

// Reads an array of objects.
func (r *FieldReader) Objects(field string, maxElems int) []Fields {
	var objs []Fields

	r.Array(field, maxElems, func(i int, v interface{}) {
		m, ok := asMap(v)
		if !ok {
			r.Bad(field)
			return
		}
		objs = append(objs, m)
	})

	if r.err != nil {
		return nil
	}
	return objs
}

// Reads an array of integers, each in [min, max].
func (r *FieldReader) Ints(field string, maxElems int,
	min int64, max int64) []int64 {

	var vals []int64

	r.Array(field, maxElems, func(i int, v interface{}) {
		n, ok := toInt64(v)
		if !ok || n < min || n > max {
			r.Bad(field)
			return
		}
		vals = append(vals, n)
	})

	if r.err != nil {
		return nil
	}
	return vals
}
