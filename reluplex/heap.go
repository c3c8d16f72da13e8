/******************************************************************************************[Heap.h]
Copyright (c) 2003-2006, Niklas Een, Niklas Sorensson
Copyright (c) 2007-2010, Niklas Sorensson

Permission is hereby granted, free of charge, to any person obtaining a copy of this software and
associated documentation files (the "Software"), to deal in the Software without restriction,
including without limitation the rights to use, copy, modify, merge, publish, distribute,
sublicense, and/or sell copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all copies or
substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT
NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM,
DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT
OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
**************************************************************************************************/

package reluplex

// violationHeap orders ReLU f-variables by their repair-attempt count, so
// dissolveReluOn always targets the most chronically broken pair first.
// Adapted from MiniSat's mtl/Heap.h indexed binary heap (as used for
// variable-activity ordering); here the key is repair attempts rather than
// activity, and entries are f-variables rather than boolean variables.
type violationHeap struct {
	attempts map[Var]int // should be the registry's slice-like map, not a copy
	content  []Var
	indices  map[Var]int // position of each item in content; absent means not present
}

func newViolationHeap(attempts map[Var]int) *violationHeap {
	return &violationHeap{
		attempts: attempts,
		indices:  make(map[Var]int),
	}
}

func (q *violationHeap) lt(i, j Var) bool {
	return q.attempts[i] > q.attempts[j]
}

func left(i int) int   { return i*2 + 1 }
func right(i int) int  { return (i + 1) * 2 }
func parent(i int) int { return (i - 1) >> 1 }

func (q *violationHeap) percolateUp(i int) {
	x := q.content[i]
	p := parent(i)
	for i != 0 && q.lt(x, q.content[p]) {
		q.content[i] = q.content[p]
		q.indices[q.content[p]] = i
		i = p
		p = parent(p)
	}
	q.content[i] = x
	q.indices[x] = i
}

func (q *violationHeap) percolateDown(i int) {
	x := q.content[i]
	for left(i) < len(q.content) {
		child := left(i)
		if right(i) < len(q.content) && q.lt(q.content[right(i)], q.content[left(i)]) {
			child = right(i)
		}
		if !q.lt(q.content[child], x) {
			break
		}
		q.content[i] = q.content[child]
		q.indices[q.content[i]] = i
		i = child
	}
	q.content[i] = x
	q.indices[x] = i
}

func (q *violationHeap) len() int    { return len(q.content) }
func (q *violationHeap) empty() bool { return len(q.content) == 0 }

func (q *violationHeap) contains(v Var) bool {
	_, ok := q.indices[v]
	return ok
}

func (q *violationHeap) insert(v Var) {
	if q.contains(v) {
		return
	}
	q.indices[v] = len(q.content)
	q.content = append(q.content, v)
	q.percolateUp(q.indices[v])
}

func (q *violationHeap) update(v Var) {
	if !q.contains(v) {
		q.insert(v)
		return
	}
	q.percolateUp(q.indices[v])
	q.percolateDown(q.indices[v])
}

func (q *violationHeap) removeMax() Var {
	x := q.content[0]
	last := len(q.content) - 1
	q.content[0] = q.content[last]
	q.indices[q.content[0]] = 0
	delete(q.indices, x)
	q.content = q.content[:last]
	if len(q.content) > 1 {
		q.percolateDown(0)
	}
	return x
}
