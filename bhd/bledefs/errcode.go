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

// Status codes reported on the wire.  The SYS_* codes describe protocol
// errors detected by the gateway itself; the ERR_CODE_* codes originate in
// the BLE host stack.
const (
	SYS_EOK       int = 0
	SYS_ENOMEM        = -1
	SYS_EINVAL        = -2
	SYS_ETIMEOUT      = -3
	SYS_ENOENT        = -4
	SYS_EIO           = -5
	SYS_EAGAIN        = -6
	SYS_EACCES        = -7
	SYS_EBUSY         = -8
	SYS_ENODEV        = -9
	SYS_ERANGE        = -10
	SYS_EALREADY      = -11
	SYS_ENOTSUP       = -12
	SYS_EUNKNOWN      = -13
	SYS_EREMOTEIO     = -14
	SYS_EDONE         = -15
)

var SysErrCodeStringMap = map[int]string{
	SYS_ENOMEM:    "sys_enomem",
	SYS_EINVAL:    "sys_einval",
	SYS_ETIMEOUT:  "sys_etimeout",
	SYS_ENOENT:    "sys_enoent",
	SYS_EIO:       "sys_eio",
	SYS_EAGAIN:    "sys_eagain",
	SYS_EACCES:    "sys_eacces",
	SYS_EBUSY:     "sys_ebusy",
	SYS_ENODEV:    "sys_enodev",
	SYS_ERANGE:    "sys_erange",
	SYS_EALREADY:  "sys_ealready",
	SYS_ENOTSUP:   "sys_enotsup",
	SYS_EUNKNOWN:  "sys_eunknown",
	SYS_EREMOTEIO: "sys_eremoteio",
	SYS_EDONE:     "sys_edone",
}

const ERR_CODE_ATT_BASE = 0x100
const ERR_CODE_HCI_BASE = 0x200
const ERR_CODE_L2C_BASE = 0x300
const ERR_CODE_SM_US_BASE = 0x400
const ERR_CODE_SM_PEER_BASE = 0x500

const (
	ERR_CODE_EAGAIN       int = 1
	ERR_CODE_EALREADY         = 2
	ERR_CODE_EINVAL           = 3
	ERR_CODE_EMSGSIZE         = 4
	ERR_CODE_ENOENT           = 5
	ERR_CODE_ENOMEM           = 6
	ERR_CODE_ENOTCONN         = 7
	ERR_CODE_ENOTSUP          = 8
	ERR_CODE_EAPP             = 9
	ERR_CODE_EBADDATA         = 10
	ERR_CODE_EOS              = 11
	ERR_CODE_ECONTROLLER      = 12
	ERR_CODE_ETIMEOUT         = 13
	ERR_CODE_EDONE            = 14
	ERR_CODE_EBUSY            = 15
	ERR_CODE_EREJECT          = 16
	ERR_CODE_EUNKNOWN         = 17
	ERR_CODE_EROLE            = 18
	ERR_CODE_ETIMEOUT_HCI     = 19
	ERR_CODE_ENOMEM_EVT       = 20
	ERR_CODE_ENOADDR          = 21
	ERR_CODE_ENOTSYNCED       = 22
)

var ErrCodeStringMap = map[int]string{
	ERR_CODE_EAGAIN:       "eagain",
	ERR_CODE_EALREADY:     "ealready",
	ERR_CODE_EINVAL:       "einval",
	ERR_CODE_EMSGSIZE:     "emsgsize",
	ERR_CODE_ENOENT:       "enoent",
	ERR_CODE_ENOMEM:       "enomem",
	ERR_CODE_ENOTCONN:     "enotconn",
	ERR_CODE_ENOTSUP:      "enotsup",
	ERR_CODE_EAPP:         "eapp",
	ERR_CODE_EBADDATA:     "ebaddata",
	ERR_CODE_EOS:          "eos",
	ERR_CODE_ECONTROLLER:  "econtroller",
	ERR_CODE_ETIMEOUT:     "etimeout",
	ERR_CODE_EDONE:        "edone",
	ERR_CODE_EBUSY:        "ebusy",
	ERR_CODE_EREJECT:      "ereject",
	ERR_CODE_EUNKNOWN:     "eunknown",
	ERR_CODE_EROLE:        "erole",
	ERR_CODE_ETIMEOUT_HCI: "etimeout_hci",
	ERR_CODE_ENOMEM_EVT:   "enomem_evt",
	ERR_CODE_ENOADDR:      "enoaddr",
	ERR_CODE_ENOTSYNCED:   "enotsynced",
}

// ATT error codes.  These are returned to the host stack by the attribute
// access callback and appear on the wire offset by ERR_CODE_ATT_BASE.
const (
	ATT_ERR_INVALID_HANDLE         uint8 = 0x01
	ATT_ERR_READ_NOT_PERMITTED           = 0x02
	ATT_ERR_WRITE_NOT_PERMITTED          = 0x03
	ATT_ERR_INVALID_PDU                  = 0x04
	ATT_ERR_INSUFFICIENT_AUTHEN          = 0x05
	ATT_ERR_REQ_NOT_SUPPORTED            = 0x06
	ATT_ERR_INVALID_OFFSET               = 0x07
	ATT_ERR_INSUFFICIENT_AUTHOR          = 0x08
	ATT_ERR_PREPARE_QUEUE_FULL           = 0x09
	ATT_ERR_ATTR_NOT_FOUND               = 0x0a
	ATT_ERR_ATTR_NOT_LONG                = 0x0b
	ATT_ERR_INSUFFICIENT_KEY_SZ          = 0x0c
	ATT_ERR_INVALID_ATTR_VALUE_LEN       = 0x0d
	ATT_ERR_UNLIKELY                     = 0x0e
	ATT_ERR_INSUFFICIENT_ENC             = 0x0f
	ATT_ERR_UNSUPPORTED_GROUP            = 0x10
	ATT_ERR_INSUFFICIENT_RES             = 0x11
)

var AttErrCodeStringMap = map[uint8]string{
	ATT_ERR_INVALID_HANDLE:         "invalid handle",
	ATT_ERR_READ_NOT_PERMITTED:     "read not permitted",
	ATT_ERR_WRITE_NOT_PERMITTED:    "write not permitted",
	ATT_ERR_INVALID_PDU:            "invalid pdu",
	ATT_ERR_INSUFFICIENT_AUTHEN:    "insufficient authentication",
	ATT_ERR_REQ_NOT_SUPPORTED:      "request not supported",
	ATT_ERR_INVALID_OFFSET:         "invalid offset",
	ATT_ERR_INSUFFICIENT_AUTHOR:    "insufficient authorization",
	ATT_ERR_PREPARE_QUEUE_FULL:     "prepare queue full",
	ATT_ERR_ATTR_NOT_FOUND:         "attribute not found",
	ATT_ERR_ATTR_NOT_LONG:          "attribute not long",
	ATT_ERR_INSUFFICIENT_KEY_SZ:    "insufficient key size",
	ATT_ERR_INVALID_ATTR_VALUE_LEN: "invalid attribute value length",
	ATT_ERR_UNLIKELY:               "unlikely",
	ATT_ERR_INSUFFICIENT_ENC:       "insufficient encryption",
	ATT_ERR_UNSUPPORTED_GROUP:      "unsupported group",
	ATT_ERR_INSUFFICIENT_RES:       "insufficient resources",
}

const (
	ERR_CODE_HCI_UNKNOWN_HCI_CMD     int = 1
	ERR_CODE_HCI_UNK_CONN_ID             = 2
	ERR_CODE_HCI_HW_FAIL                 = 3
	ERR_CODE_HCI_PAGE_TMO                = 4
	ERR_CODE_HCI_AUTH_FAIL               = 5
	ERR_CODE_HCI_PINKEY_MISSING          = 6
	ERR_CODE_HCI_MEM_CAPACITY            = 7
	ERR_CODE_HCI_CONN_SPVN_TMO           = 8
	ERR_CODE_HCI_CONN_LIMIT              = 9
	ERR_CODE_HCI_ACL_CONN_EXISTS         = 11
	ERR_CODE_HCI_CMD_DISALLOWED          = 12
	ERR_CODE_HCI_CONN_ACCEPT_TMO         = 16
	ERR_CODE_HCI_UNSUPPORTED             = 17
	ERR_CODE_HCI_INV_HCI_CMD_PARMS       = 18
	ERR_CODE_HCI_REM_USER_CONN_TERM      = 19
	ERR_CODE_HCI_RD_CONN_TERM_RESRCS     = 20
	ERR_CODE_HCI_RD_CONN_TERM_PWROFF     = 21
	ERR_CODE_HCI_CONN_TERM_LOCAL         = 22
	ERR_CODE_HCI_UNSPECIFIED             = 31
	ERR_CODE_HCI_INSUFFICIENT_SEC        = 47
	ERR_CODE_HCI_CTLR_BUSY               = 58
	ERR_CODE_HCI_CONN_PARMS              = 59
	ERR_CODE_HCI_DIR_ADV_TMO             = 60
	ERR_CODE_HCI_CONN_TERM_MIC           = 61
	ERR_CODE_HCI_CONN_ESTABLISHMENT      = 62
)

var HciErrCodeStringMap = map[int]string{
	ERR_CODE_HCI_UNKNOWN_HCI_CMD:     "unknown hci cmd",
	ERR_CODE_HCI_UNK_CONN_ID:         "unknown connection id",
	ERR_CODE_HCI_HW_FAIL:             "hw fail",
	ERR_CODE_HCI_PAGE_TMO:            "page tmo",
	ERR_CODE_HCI_AUTH_FAIL:           "auth fail",
	ERR_CODE_HCI_PINKEY_MISSING:      "pinkey missing",
	ERR_CODE_HCI_MEM_CAPACITY:        "mem capacity",
	ERR_CODE_HCI_CONN_SPVN_TMO:       "connection supervision timeout",
	ERR_CODE_HCI_CONN_LIMIT:          "conn limit",
	ERR_CODE_HCI_ACL_CONN_EXISTS:     "acl conn exists",
	ERR_CODE_HCI_CMD_DISALLOWED:      "cmd disallowed",
	ERR_CODE_HCI_CONN_ACCEPT_TMO:     "conn accept tmo",
	ERR_CODE_HCI_UNSUPPORTED:         "unsupported",
	ERR_CODE_HCI_INV_HCI_CMD_PARMS:   "inv hci cmd parms",
	ERR_CODE_HCI_REM_USER_CONN_TERM:  "rem user conn term",
	ERR_CODE_HCI_RD_CONN_TERM_RESRCS: "rd conn term resrcs",
	ERR_CODE_HCI_RD_CONN_TERM_PWROFF: "rd conn term pwroff",
	ERR_CODE_HCI_CONN_TERM_LOCAL:     "conn term local",
	ERR_CODE_HCI_UNSPECIFIED:         "unspecified",
	ERR_CODE_HCI_INSUFFICIENT_SEC:    "insufficient sec",
	ERR_CODE_HCI_CTLR_BUSY:           "ctlr busy",
	ERR_CODE_HCI_CONN_PARMS:          "conn parms",
	ERR_CODE_HCI_DIR_ADV_TMO:         "dir adv tmo",
	ERR_CODE_HCI_CONN_TERM_MIC:       "conn term mic",
	ERR_CODE_HCI_CONN_ESTABLISHMENT:  "conn establishment",
}

// SM error codes, reported offset by ERR_CODE_SM_US_BASE or
// ERR_CODE_SM_PEER_BASE.
const (
	SM_ERR_PASSKEY       int = 0x01
	SM_ERR_OOB               = 0x02
	SM_ERR_AUTHREQ           = 0x03
	SM_ERR_CONFIRM           = 0x04
	SM_ERR_PAIR_NOT_SUPP     = 0x05
	SM_ERR_ENC_KEY_SZ        = 0x06
	SM_ERR_CMD_NOT_SUPP      = 0x07
	SM_ERR_UNSPECIFIED       = 0x08
	SM_ERR_REPEATED          = 0x09
	SM_ERR_INVAL             = 0x0a
	SM_ERR_DHKEY             = 0x0b
	SM_ERR_NUMCMP            = 0x0c
)

func HciErrCode(hciCode int) int {
	return ERR_CODE_HCI_BASE + hciCode
}

func AttErrCode(attCode uint8) int {
	return ERR_CODE_ATT_BASE + int(attCode)
}

func ErrCodeToString(e int) string {
	var s string

	switch {
	case e < 0:
		s = SysErrCodeStringMap[e]
	case e >= ERR_CODE_SM_PEER_BASE:
	case e >= ERR_CODE_SM_US_BASE:
	case e >= ERR_CODE_L2C_BASE:
	case e >= ERR_CODE_HCI_BASE:
		s = HciErrCodeStringMap[e-ERR_CODE_HCI_BASE]
	case e >= ERR_CODE_ATT_BASE:
		s = AttErrCodeStringMap[uint8(e-ERR_CODE_ATT_BASE)]
	default:
		s = ErrCodeStringMap[e]
	}

	if s == "" {
		s = "unknown"
	}

	return s
}
