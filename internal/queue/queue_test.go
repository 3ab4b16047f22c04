// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package queue

import (
	"bytes"
	"testing"
)

func TestPushDrainFIFO(t *testing.T) {
	q := New(16)
	if err := q.Push([]byte("hello ")); err != nil {
		t.Fatalf("Push error: %v", err)
	}
	if err := q.Push([]byte("world")); err != nil {
		t.Fatalf("Push error: %v", err)
	}

	var out bytes.Buffer
	n, err := q.Drain(11, &out)
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if n != 11 {
		t.Fatalf("Drain wrote %d bytes, want 11", n)
	}
	if out.String() != "hello world" {
		t.Fatalf("Drain output %q, want %q", out.String(), "hello world")
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}

func TestDrainEmptyReturnsZero(t *testing.T) {
	q := New(16)
	var out bytes.Buffer
	n, err := q.Drain(10, &out)
	if err != nil || n != 0 {
		t.Fatalf("Drain on empty queue = (%d, %v), want (0, nil)", n, err)
	}
}

func TestDrainAcrossMultipleSegments(t *testing.T) {
	q := New(4) // tiny segments, forces many allocations
	payload := []byte("0123456789ABCDEF")
	if err := q.Push(payload); err != nil {
		t.Fatalf("Push error: %v", err)
	}
	if q.Len() != len(payload) {
		t.Fatalf("Len() = %d, want %d", q.Len(), len(payload))
	}

	var out bytes.Buffer
	total := 0
	for total < len(payload) {
		n, err := q.Drain(3, &out)
		if err != nil {
			t.Fatalf("Drain error: %v", err)
		}
		if n == 0 {
			t.Fatalf("Drain returned 0 before queue was empty")
		}
		total += n
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Fatalf("output %q != input %q", out.Bytes(), payload)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after full drain", q.Len())
	}
}

func TestHeadTailConsistency(t *testing.T) {
	q := New(4)
	if !q.headTailConsistent() {
		t.Fatal("empty queue should be consistent")
	}
	for i := 0; i < 20; i++ {
		if err := q.Push([]byte{byte(i)}); err != nil {
			t.Fatalf("Push error: %v", err)
		}
		if !q.headTailConsistent() {
			t.Fatalf("inconsistent after push #%d", i)
		}
	}
	var sink bytes.Buffer
	for q.Len() > 0 {
		if _, err := q.Drain(1, &sink); err != nil {
			t.Fatalf("Drain error: %v", err)
		}
		if !q.headTailConsistent() {
			t.Fatal("inconsistent mid-drain")
		}
	}
	if q.head != nil || q.tail != nil {
		t.Fatal("head/tail should both be nil once fully drained")
	}
}

func TestPartialDrainAdvancesStartInPlace(t *testing.T) {
	q := New(64)
	if err := q.Push([]byte("abcdef")); err != nil {
		t.Fatalf("Push error: %v", err)
	}
	var out bytes.Buffer
	n, err := q.Drain(2, &out)
	if err != nil || n != 2 {
		t.Fatalf("Drain = (%d, %v)", n, err)
	}
	if out.String() != "ab" {
		t.Fatalf("out = %q, want \"ab\"", out.String())
	}
	if q.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", q.Len())
	}
	n, err = q.Drain(4, &out)
	if err != nil || n != 4 {
		t.Fatalf("Drain = (%d, %v)", n, err)
	}
	if out.String() != "abcdef" {
		t.Fatalf("out = %q, want \"abcdef\"", out.String())
	}
}
