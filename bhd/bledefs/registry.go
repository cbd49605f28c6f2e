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

package bledefs

import (
	"fmt"
	"sort"
)

// Returned when a symbolic name has no corresponding code.
type UnknownSymbolError struct {
	Domain string
	Name   string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("Invalid %s string: %s", e.Domain, e.Name)
}

func IsUnknownSymbol(err error) bool {
	_, ok := err.(*UnknownSymbolError)
	return ok
}

// Returned when a code has no corresponding symbolic name.
type UnknownCodeError struct {
	Domain string
	Code   int
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("Invalid %s code: %d", e.Domain, e.Code)
}

func IsUnknownCode(err error) bool {
	_, ok := err.(*UnknownCodeError)
	return ok
}

// A bidirectional mapping between the integer codes of one enumerated domain
// and their wire names.  Tables are built once at init time and only read
// afterwards, so lookups need no locking.
type SymTable struct {
	domain string
	names  map[int]string
	codes  map[string]int
}

func NewSymTable(domain string, names map[int]string) *SymTable {
	t := &SymTable{
		domain: domain,
		names:  make(map[int]string, len(names)),
		codes:  make(map[string]int, len(names)),
	}

	for code, name := range names {
		if _, ok := t.codes[name]; ok {
			panic(fmt.Sprintf("duplicate %s name: %s", domain, name))
		}
		t.names[code] = name
		t.codes[name] = code
	}

	return t
}

func (t *SymTable) Domain() string {
	return t.domain
}

func (t *SymTable) Encode(code int) (string, error) {
	name, ok := t.names[code]
	if !ok {
		return "", &UnknownCodeError{Domain: t.domain, Code: code}
	}
	return name, nil
}

func (t *SymTable) Decode(name string) (int, error) {
	code, ok := t.codes[name]
	if !ok {
		return 0, &UnknownSymbolError{Domain: t.domain, Name: name}
	}
	return code, nil
}

// Encode for display purposes; unknown codes render as "???".
func (t *SymTable) String(code int) string {
	name, err := t.Encode(code)
	if err != nil {
		return "???"
	}
	return name
}

// Names returns every name in the table, sorted.
func (t *SymTable) Names() []string {
	names := make([]string, 0, len(t.codes))
	for name, _ := range t.codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
