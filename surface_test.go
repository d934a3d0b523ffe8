// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func newTestSurface(t *testing.T, w, h int) *Surface {
	t.Helper()
	s, err := NewSurface(SurfaceConfig{
		Width:       w,
		Height:      h,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		Budgeted:    BudgetedYes,
	})
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	return s
}

// TestNewSurfaceValidation tests dimension validation.
func TestNewSurfaceValidation(t *testing.T) {
	_, err := NewSurface(SurfaceConfig{Width: 0, Height: 10})
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("err = %v, want ErrInvalidDimensions", err)
	}

	s := newTestSurface(t, 4, 4)
	if s.RefCount() != 1 {
		t.Errorf("RefCount = %d, want 1", s.RefCount())
	}
	if s.SampleCount() != 1 {
		t.Errorf("SampleCount = %d, want 1", s.SampleCount())
	}
}

// TestSurfaceSizeBytes tests the footprint estimate, including the mip
// chain surcharge.
func TestSurfaceSizeBytes(t *testing.T) {
	s := newTestSurface(t, 100, 50)
	if got := s.SizeBytes(); got != 100*50*4 {
		t.Errorf("SizeBytes = %d, want %d", got, 100*50*4)
	}

	mipped, err := NewSurface(SurfaceConfig{
		Width: 64, Height: 64,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		MipMapped:   true,
	})
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	base := int64(64 * 64 * 4)
	if got := mipped.SizeBytes(); got != base+base/3 {
		t.Errorf("mipmapped SizeBytes = %d, want %d", got, base+base/3)
	}
}

// TestSurfaceUnrefCloses tests that the last Unref releases the backend
// when no listener intervenes.
func TestSurfaceUnrefCloses(t *testing.T) {
	s := newTestSurface(t, 8, 8)
	s.Ref()
	s.Unref()
	if s.IsReleased() {
		t.Fatal("surface released while a reference remains")
	}
	s.Unref()
	if !s.IsReleased() {
		t.Error("surface not released after last Unref")
	}
}

// TestSurfaceListenerKeepsAlive tests that a listener returning true takes
// ownership at the last Unref.
func TestSurfaceListenerKeepsAlive(t *testing.T) {
	s := newTestSurface(t, 8, 8)

	calls := 0
	s.SetListener(listenerFunc(func(got *Surface) bool {
		calls++
		if got != s {
			t.Errorf("listener got %v, want %v", got, s)
		}
		return true
	}))

	s.Unref()
	if calls != 1 {
		t.Fatalf("listener calls = %d, want 1", calls)
	}
	if s.IsReleased() {
		t.Error("surface released although listener took ownership")
	}
	s.Close()
}

// TestSurfaceListenerDeclines tests that a listener returning false lets
// the surface close.
func TestSurfaceListenerDeclines(t *testing.T) {
	s := newTestSurface(t, 8, 8)
	s.SetListener(listenerFunc(func(*Surface) bool { return false }))

	s.Unref()
	if !s.IsReleased() {
		t.Error("surface not released after listener declined")
	}
}

// TestSurfaceReleaseCallbackOnce tests that the release callback fires
// exactly once even across repeated Close calls.
func TestSurfaceReleaseCallbackOnce(t *testing.T) {
	fired := 0
	s, err := NewSurface(SurfaceConfig{
		Width: 8, Height: 8,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		Release:     func() { fired++ },
	})
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}

	s.Close()
	s.Close()
	if fired != 1 {
		t.Errorf("release callback fired %d times, want 1", fired)
	}
}

// TestSurfaceUniqueKey tests key mirroring and clearing.
func TestSurfaceUniqueKey(t *testing.T) {
	s := newTestSurface(t, 8, 8)
	defer s.Unref()

	if s.UniqueKey().IsValid() {
		t.Fatal("fresh surface carries a key")
	}
	key := NewKeyBuilder(NewDomain()).AddUint32(1).Build()
	s.SetUniqueKey(key)
	if s.UniqueKey() != key {
		t.Errorf("UniqueKey = %v, want %v", s.UniqueKey(), key)
	}
	s.ClearUniqueKey()
	if s.UniqueKey().IsValid() {
		t.Error("key still valid after ClearUniqueKey")
	}
}

// listenerFunc adapts a function to SurfaceListener.
type listenerFunc func(*Surface) bool

func (f listenerFunc) SurfaceUnreferenced(s *Surface) bool { return f(s) }
