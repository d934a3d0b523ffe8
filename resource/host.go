// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// Host integration errors.
var (
	// ErrNilHost is returned when a nil device provider is passed.
	ErrNilHost = errors.New("resource: nil device provider")
)

// NewProviderForHost creates an allocator sharing the GPU device of a host
// application (e.g. a gogpu App). The host's device provider must expose
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func NewProviderForHost(host gpucontext.DeviceProvider, cache *Cache) (*Provider, error) {
	if host == nil {
		return nil, ErrNilHost
	}

	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := host.(halProvider)
	if !ok {
		return nil, fmt.Errorf("resource: device provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("resource: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("resource: provider HalQueue is not hal.Queue")
	}

	return NewProvider(device, queue, cache), nil
}
