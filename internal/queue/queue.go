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

// Package queue implements the segmented byte FIFO that sits between the
// smoother's producer and consumer: a doubly linked list of fixed-size
// segments, grown at the head by the producer and drained from the tail by
// the consumer, with the lock released before any output write.
package queue

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrAlloc is returned by Push when a new segment cannot be allocated.
// Callers are expected to treat this as unrecoverable and terminate the
// process rather than retry.
var ErrAlloc = errors.New("queue: segment allocation failed")

// DefaultSegmentBytes is the size of one segment buffer (~40 KiB).
const DefaultSegmentBytes = 40 * 1024

type segment struct {
	buf        []byte
	start, end int
	prev, next *segment
}

func newSegment(size int) *segment {
	return &segment{buf: make([]byte, size)}
}

func (s *segment) len() int { return s.end - s.start }
func (s *segment) avail() int { return len(s.buf) - s.end }

// Queue is a FIFO of byte segments. The zero value is not usable; use New.
type Queue struct {
	mu          sync.Mutex
	head, tail  *segment
	segmentSize int
	level       atomic.Int64 // buffer_level, best-effort unlocked reads allowed
}

// New creates an empty queue whose segments are segmentSize bytes each.
func New(segmentSize int) *Queue {
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentBytes
	}
	return &Queue{segmentSize: segmentSize}
}

// Len returns the current buffer_level. It is safe to call without holding
// any lock; it is a best-effort gauge, not a safety variable.
func (q *Queue) Len() int {
	return int(q.level.Load())
}

// Push appends bytes to the head of the queue, growing the head segment in
// place when it has room and allocating a new head segment otherwise. It
// returns ErrAlloc, a fatal condition, if a new segment cannot be
// allocated.
func (q *Queue) Push(p []byte) (err error) {
	if len(p) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrAlloc, "%v", r)
		}
	}()

	remaining := p
	for len(remaining) > 0 {
		if q.head == nil || q.head.avail() == 0 {
			seg := newSegment(q.segmentSize)
			seg.next = q.head
			if q.head != nil {
				q.head.prev = seg
			}
			q.head = seg
			if q.tail == nil {
				q.tail = seg
			}
		}
		n := copy(q.head.buf[q.head.end:], remaining)
		q.head.end += n
		remaining = remaining[n:]
		q.level.Add(int64(n))
	}
	return nil
}

// Drain writes up to n bytes from the tail of the queue to w, looping over
// as many segments as needed (one write syscall per segment visited). The
// lock is released before each write so the producer is never blocked on a
// slow output. It returns the number of bytes actually written.
func (q *Queue) Drain(n int, w io.Writer) (int, error) {
	written := 0
	for written < n {
		q.mu.Lock()
		tail := q.tail
		if tail == nil {
			q.mu.Unlock()
			return written, nil
		}

		want := n - written
		avail := tail.len()
		take := avail
		unlinked := true
		if avail > want {
			take = want
			unlinked = false
		}

		start := tail.start
		chunk := tail.buf[start : start+take]

		if unlinked {
			q.tail = tail.prev
			if q.tail == nil {
				q.head = nil
			} else {
				q.tail.next = nil
			}
		} else {
			tail.start += take
		}
		q.level.Add(-int64(take))
		q.mu.Unlock()

		nw, err := w.Write(chunk)
		written += nw
		if err != nil {
			return written, err
		}
		if nw < take {
			// Short write with no error should not happen for the
			// writers this package is used with, but guard against
			// an infinite loop if it ever does.
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// headTailConsistent reports whether head==nil iff tail==nil, whether
// walking from head via .next reaches tail, and whether walking from tail
// via .prev reaches head. It exists for tests that verify the head/tail
// consistency invariant.
func (q *Queue) headTailConsistent() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if (q.head == nil) != (q.tail == nil) {
		return false
	}
	if q.head == nil {
		return true
	}
	n := q.head
	for n.next != nil {
		n = n.next
	}
	if n != q.tail {
		return false
	}
	p := q.tail
	for p.prev != nil {
		p = p.prev
	}
	return p == q.head
}
