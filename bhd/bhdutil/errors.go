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

package bhdutil

import (
	"fmt"

	"github.com/pkg/errors"

	"mynewt.apache.org/blehostd/bhd/bledefs"
)

// Represents a status code reported by the BLE host stack.  The status is
// passed through to the client verbatim.
type HostError struct {
	Text   string
	Status int
}

func NewHostError(status int, text string) *HostError {
	return &HostError{
		Text:   text,
		Status: status,
	}
}

func FmtHostError(status int, format string, args ...interface{}) *HostError {
	return NewHostError(status, fmt.Sprintf(format, args...))
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s (status=%d %s)",
		e.Text, e.Status, bledefs.ErrCodeToString(e.Status))
}

func IsHost(err error) bool {
	_, ok := errors.Cause(err).(*HostError)
	return ok
}

func ToHost(err error) *HostError {
	if he, ok := errors.Cause(err).(*HostError); ok {
		return he
	}
	return nil
}

// Represents a low-level transport error.
type XportError struct {
	Text string
}

func NewXportError(text string) *XportError {
	return &XportError{text}
}

func FmtXportError(format string, args ...interface{}) *XportError {
	return NewXportError(fmt.Sprintf(format, args...))
}

func (e *XportError) Error() string {
	return e.Text
}

func IsXport(err error) bool {
	_, ok := errors.Cause(err).(*XportError)
	return ok
}

// Indicates that an attribute access status arrived while no access was
// outstanding.
type NoPendingAccessError struct {
	Text string
}

func NewNoPendingAccessError(text string) *NoPendingAccessError {
	return &NoPendingAccessError{text}
}

func (e *NoPendingAccessError) Error() string {
	return e.Text
}

func IsNoPendingAccess(err error) bool {
	_, ok := errors.Cause(err).(*NoPendingAccessError)
	return ok
}

// Indicates that a GATT definition would not fit in the service arena.
type CapacityError struct {
	Text string
}

func NewCapacityError(text string) *CapacityError {
	return &CapacityError{text}
}

func FmtCapacityError(format string, args ...interface{}) *CapacityError {
	return NewCapacityError(fmt.Sprintf(format, args...))
}

func (e *CapacityError) Error() string {
	return e.Text
}

func IsCapacity(err error) bool {
	_, ok := errors.Cause(err).(*CapacityError)
	return ok
}

type TimeoutError struct {
	Text string
}

func NewTimeoutError(text string) *TimeoutError {
	return &TimeoutError{text}
}

func FmtTimeoutError(format string, args ...interface{}) *TimeoutError {
	return NewTimeoutError(fmt.Sprintf(format, args...))
}

func (e *TimeoutError) Error() string {
	return e.Text
}

func IsTimeout(err error) bool {
	_, ok := errors.Cause(err).(*TimeoutError)
	return ok
}

type AbortedError struct {
	Text string
}

func NewAbortedError(text string) *AbortedError {
	return &AbortedError{text}
}

func (e *AbortedError) Error() string {
	return e.Text
}

// Converts an error into the status code reported on the wire.
func ErrStatus(err error) int {
	if err == nil {
		return 0
	}

	switch e := errors.Cause(err).(type) {
	case *HostError:
		return e.Status
	case *CapacityError:
		return bledefs.ERR_CODE_ENOMEM
	case *NoPendingAccessError:
		return bledefs.SYS_ENOENT
	case *TimeoutError:
		return bledefs.ERR_CODE_ETIMEOUT
	default:
		return bledefs.ERR_CODE_EUNKNOWN
	}
}

func ErrorCausedBy(err error, cause error) bool {
	cur := err
	for {
		if cur == cause {
			return true
		}

		child := errors.Cause(cur)
		if child == cur {
			return false
		}

		cur = child
	}
}
