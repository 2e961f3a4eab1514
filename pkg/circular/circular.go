package circular

import (
	"errors"
	"sync"
)

var ErrSizeMismatch = errors.New("circular: target buffer must be of the same size as source buffer")

/*
 * Data structure implementing a circular buffer that always holds the most
 * recent samples written to it.
 *
 * The buffer is safe for one writer and any number of readers.
 */
type Buffer[T any] struct {
	mutex   sync.RWMutex
	values  []T
	pointer int
	written int
}

/*
 * Add elements to the circular buffer, overwriting the oldest elements.
 *
 * Semantics: First write to buffer, then increment pointer.
 *
 * Pointer points to "oldest" element, or next element to be overwritten.
 */
func (b *Buffer[T]) Write(elems ...T) {
	numElems := len(elems)
	values := b.values
	n := len(values)

	if n == 0 {
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	/*
	 * If there are more elements than fit into the buffer, simply copy
	 * the tail of the element array into the buffer, otherwise perform
	 * circular write operation.
	 */
	if numElems >= n {
		copy(values, elems[numElems-n:numElems])
		b.pointer = 0
	} else {
		ptr := b.pointer
		ptrInc := ptr + numElems

		/*
		 * Check whether the write operation stays within the array bounds.
		 */
		if ptrInc < n {
			copy(values[ptr:ptrInc], elems)
			b.pointer = ptrInc
		} else {
			head := ptrInc - n
			tail := n - ptr
			copy(values[ptr:n], elems[0:tail])
			copy(values[0:head], elems[tail:numElems])
			b.pointer = head
		}

	}

	b.written += numElems

	if b.written > n {
		b.written = n
	}

}

/*
 * Returns the capacity of the buffer.
 */
func (b *Buffer[T]) Length() int {
	return len(b.values)
}

/*
 * Returns true once at least Length() elements were written.
 */
func (b *Buffer[T]) Full() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.written == len(b.values)
}

/*
 * Copy all elements, oldest first, into buf.
 *
 * Slots that were never written hold the zero value and come first.
 */
func (b *Buffer[T]) Retrieve(buf []T) error {
	values := b.values
	n := len(values)

	if len(buf) != n {
		return ErrSizeMismatch
	}

	b.mutex.RLock()
	ptr := b.pointer
	tailSize := n - ptr
	copy(buf[0:tailSize], values[ptr:n])
	copy(buf[tailSize:n], values[0:ptr])
	b.mutex.RUnlock()
	return nil
}

/*
 * Returns the i-th oldest element, or false if i is out of range.
 */
func (b *Buffer[T]) At(i int) (T, bool) {
	var zero T
	n := len(b.values)

	if i < 0 || i >= n {
		return zero, false
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.values[(b.pointer+i)%n], true
}

/*
 * Zero all elements.
 */
func (b *Buffer[T]) Reset() {
	var zero T
	b.mutex.Lock()

	for i := range b.values {
		b.values[i] = zero
	}

	b.pointer = 0
	b.written = 0
	b.mutex.Unlock()
}

/*
 * Creates a circular buffer of a certain size.
 */
func CreateBuffer[T any](size int) *Buffer[T] {

	if size < 0 {
		size = 0
	}

	buf := Buffer[T]{
		values: make([]T, size),
	}

	return &buf
}
