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

// Package gatts compiles add_svcs requests into host GATT server
// definitions.  Definitions accumulate in fixed-size arenas until they are
// committed to the host or cleared.
package gatts

import (
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/proto"
)

const (
	MAX_SVCS        = 32
	MAX_CHRS        = 512
	MAX_DSCS        = 2048
	MAX_UUIDS       = MAX_SVCS + MAX_CHRS + MAX_DSCS
	MAX_VAL_HANDLES = MAX_CHRS
)

// Builds the access callback for an attribute.  seq is the event sequence
// assigned to the attribute when it was compiled.
type AccessFnFactory func(seq proto.BleSeq) host.AccessFn

// Arena occupancy.
type Counts struct {
	Svcs       int
	Chrs       int
	Dscs       int
	Uuids      int
	ValHandles int
}

func (c Counts) add(o Counts) Counts {
	return Counts{
		Svcs:       c.Svcs + o.Svcs,
		Chrs:       c.Chrs + o.Chrs,
		Dscs:       c.Dscs + o.Dscs,
		Uuids:      c.Uuids + o.Uuids,
		ValHandles: c.ValHandles + o.ValHandles,
	}
}

// Returns the arena slots needed to hold the given services.
func Required(svcs []proto.BleAddSvc) Counts {
	c := Counts{}

	for _, s := range svcs {
		c.Svcs++
		c.Uuids++

		if len(s.Chrs) > 0 {
			// Sentinel.
			c.Chrs++
		}

		for _, chr := range s.Chrs {
			c.Chrs++
			c.Uuids++
			c.ValHandles++

			if len(chr.Dscs) > 0 {
				c.Dscs++
			}
			c.Dscs += len(chr.Dscs)
			c.Uuids += len(chr.Dscs)
		}
	}

	return c
}

// Holds compiled service definitions.  Pointers handed to the host refer
// into the arenas, so a Registry must not be copied once definitions have
// been added.
type Registry struct {
	h        host.Host
	accessFn AccessFnFactory

	svcs       [MAX_SVCS]host.SvcDef
	chrs       [MAX_CHRS]host.ChrDef
	dscs       [MAX_DSCS]host.DscDef
	uuids      [MAX_UUIDS]BleUuid
	valHandles [MAX_VAL_HANDLES]uint16

	// Handles assigned by the host, parallel to svcs and dscs.
	svcHandles [MAX_SVCS]uint16
	dscHandles [MAX_DSCS]uint16

	// Per-attribute access event seqs, parallel to chrs and dscs.
	chrSeqs [MAX_CHRS]proto.BleSeq
	dscSeqs [MAX_DSCS]proto.BleSeq

	cnt Counts
}

func NewRegistry(h host.Host, accessFn AccessFnFactory) *Registry {
	return &Registry{
		h:        h,
		accessFn: accessFn,
	}
}

func (r *Registry) Counts() Counts {
	return r.cnt
}

func capErr(domain string, need int, max int) error {
	return bhdutil.FmtCapacityError(
		"too many %s; need=%d max=%d", domain, need, max)
}

func (r *Registry) checkCapacity(req Counts) error {
	total := r.cnt.add(req)

	switch {
	case total.Svcs > MAX_SVCS:
		return capErr("services", total.Svcs, MAX_SVCS)
	case total.Chrs > MAX_CHRS:
		return capErr("characteristics", total.Chrs, MAX_CHRS)
	case total.Dscs > MAX_DSCS:
		return capErr("descriptors", total.Dscs, MAX_DSCS)
	case total.Uuids > MAX_UUIDS:
		return capErr("UUIDs", total.Uuids, MAX_UUIDS)
	case total.ValHandles > MAX_VAL_HANDLES:
		return capErr("value handles", total.ValHandles, MAX_VAL_HANDLES)
	default:
		return nil
	}
}

func (r *Registry) copyUuid(uuid BleUuid) *BleUuid {
	bhdutil.Assert(r.cnt.Uuids < MAX_UUIDS)

	p := &r.uuids[r.cnt.Uuids]
	*p = uuid
	r.cnt.Uuids++
	return p
}

func (r *Registry) addDscs(dscs []proto.BleAddDsc) []host.DscDef {
	if len(dscs) == 0 {
		return nil
	}

	start := r.cnt.Dscs
	for _, d := range dscs {
		bhdutil.Assert(r.cnt.Dscs < MAX_DSCS-1)

		seq := proto.NextEvtSeq()
		r.dscSeqs[r.cnt.Dscs] = seq
		r.dscHandles[r.cnt.Dscs] = 0
		r.dscs[r.cnt.Dscs] = host.DscDef{
			Uuid:       r.copyUuid(d.Uuid),
			AttFlags:   d.AttFlags,
			MinKeySize: d.MinKeySize,
			Access:     r.accessFn(seq),
			Handle:     &r.dscHandles[r.cnt.Dscs],
		}
		r.cnt.Dscs++
	}

	bhdutil.Assert(r.cnt.Dscs < MAX_DSCS)
	r.dscs[r.cnt.Dscs] = host.DscDef{}
	r.cnt.Dscs++

	return r.dscs[start:r.cnt.Dscs:r.cnt.Dscs]
}

func (r *Registry) addChrs(chrs []proto.BleAddChr) []host.ChrDef {
	if len(chrs) == 0 {
		return nil
	}

	// Descriptor lists are appended while the characteristics are being
	// written, so reserve the characteristic range first.
	start := r.cnt.Chrs
	r.cnt.Chrs += len(chrs) + 1

	for i, c := range chrs {
		seq := proto.NextEvtSeq()
		valHandle := &r.valHandles[r.cnt.ValHandles]
		*valHandle = 0
		r.cnt.ValHandles++

		r.chrSeqs[start+i] = seq
		r.chrs[start+i] = host.ChrDef{
			Uuid:       r.copyUuid(c.Uuid),
			Flags:      c.Flags,
			MinKeySize: c.MinKeySize,
			Access:     r.accessFn(seq),
			ValHandle:  valHandle,
		}
		r.chrs[start+i].Dscs = r.addDscs(c.Dscs)
	}

	r.chrs[start+len(chrs)] = host.ChrDef{}

	return r.chrs[start:r.cnt.Chrs:r.cnt.Chrs]
}

// Compiles services into the arenas.  If the arenas lack room for the
// complete set, a CapacityError is returned and nothing is added.
func (r *Registry) Add(svcs []proto.BleAddSvc) error {
	req := Required(svcs)
	if err := r.checkCapacity(req); err != nil {
		return err
	}

	for _, s := range svcs {
		idx := r.cnt.Svcs
		r.cnt.Svcs++

		r.svcHandles[idx] = 0
		r.svcs[idx] = host.SvcDef{
			SvcType: s.SvcType,
			Uuid:    r.copyUuid(s.Uuid),
			Handle:  &r.svcHandles[idx],
		}
		r.svcs[idx].Chrs = r.addChrs(s.Chrs)
	}

	log.Debugf("Added %d GATT services; svcs=%d chrs=%d dscs=%d uuids=%d",
		len(svcs), r.cnt.Svcs, r.cnt.Chrs, r.cnt.Dscs, r.cnt.Uuids)

	return nil
}

// Discards every definition and resets the host's GATT server.
func (r *Registry) Clear() error {
	r.cnt = Counts{}

	r.svcs = [MAX_SVCS]host.SvcDef{}
	r.chrs = [MAX_CHRS]host.ChrDef{}
	r.dscs = [MAX_DSCS]host.DscDef{}
	r.uuids = [MAX_UUIDS]BleUuid{}
	r.valHandles = [MAX_VAL_HANDLES]uint16{}
	r.svcHandles = [MAX_SVCS]uint16{}
	r.dscHandles = [MAX_DSCS]uint16{}
	r.chrSeqs = [MAX_CHRS]proto.BleSeq{}
	r.dscSeqs = [MAX_DSCS]proto.BleSeq{}

	return r.h.GattsReset()
}

// Returns the compiled services.
func (r *Registry) Svcs() []host.SvcDef {
	return r.svcs[:r.cnt.Svcs]
}

// Returns the access event seq assigned to each characteristic and
// descriptor, in compile order.
func (r *Registry) AttrSeqs() ([]proto.BleSeq, []proto.BleSeq) {
	var chrSeqs []proto.BleSeq
	var dscSeqs []proto.BleSeq

	for i := 0; i < r.cnt.Chrs; i++ {
		if r.chrs[i].Uuid != nil {
			chrSeqs = append(chrSeqs, r.chrSeqs[i])
		}
	}
	for i := 0; i < r.cnt.Dscs; i++ {
		if r.dscs[i].Uuid != nil {
			dscSeqs = append(dscSeqs, r.dscSeqs[i])
		}
	}

	return chrSeqs, dscSeqs
}

// Registers the accumulated services with the host and starts the GATT
// server.  On success, the returned summary lists the handle assigned to
// every service, characteristic, and descriptor.  A failed registration is
// not rolled back.
func (r *Registry) Commit() ([]proto.BleCommitSvc, error) {
	svcs := r.Svcs()

	if len(svcs) > 0 {
		if err := r.h.GattsCountCfg(svcs); err != nil {
			return nil, err
		}
		if err := r.h.GattsAddSvcs(svcs); err != nil {
			return nil, err
		}
	}

	if err := r.h.GattsStart(); err != nil {
		return nil, err
	}

	return r.summary(), nil
}

// Handles are read back from the definitions in compile order, so services
// sharing a UUID are reported individually.
func (r *Registry) summary() []proto.BleCommitSvc {
	csvcs := []proto.BleCommitSvc{}

	for i := range r.Svcs() {
		s := &r.svcs[i]

		csvc := proto.BleCommitSvc{
			Uuid:   *s.Uuid,
			Handle: *s.Handle,
			Chrs:   []proto.BleCommitChr{},
		}

		chrs := s.Characteristics()
		for j := range chrs {
			c := &chrs[j]
			valHandle := *c.ValHandle

			cchr := proto.BleCommitChr{
				Uuid:      *c.Uuid,
				DefHandle: valHandle - 1,
				ValHandle: valHandle,
				Dscs:      []proto.BleCommitDsc{},
			}

			for _, d := range c.Descriptors() {
				cchr.Dscs = append(cchr.Dscs, proto.BleCommitDsc{
					Uuid:   *d.Uuid,
					Handle: *d.Handle,
				})
			}

			csvc.Chrs = append(csvc.Chrs, cchr)
		}

		csvcs = append(csvcs, csvc)
	}

	return csvcs
}
