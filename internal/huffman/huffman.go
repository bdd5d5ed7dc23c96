// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package huffman implements the non-canonical Huffman tree construction,
// serialization, and payload codec used for a PACu archive's index. The
// construction deliberately reproduces a specific, non-standard placement
// rule rather than building a textbook-canonical Huffman tree; see the
// comment on Build for why.
package huffman

import (
	"errors"
	"sort"

	"github.com/cosnicolaou/pacu/internal/bitio"
)

// ErrTreeMalformed is returned when tree deserialization runs out of bits
// before every node has been reconstructed.
var ErrTreeMalformed = errors.New("huffman: bit stream exhausted while rebuilding tree")

// ErrPayloadExhausted is returned when payload decoding runs out of bits
// before the requested number of symbols has been produced.
var ErrPayloadExhausted = errors.New("huffman: bit stream exhausted decoding payload")

const noChild = -1

// node is an arena-allocated tree node. A leaf has left == right ==
// noChild; an internal node has both set to valid indices into the
// owning Tree's nodes slice. The tree is strictly binary by
// construction: there is no unary node.
type node struct {
	symbol      byte
	weight      uint32
	left, right int32
}

func (n *node) isLeaf() bool { return n.left == noChild && n.right == noChild }

// Tree is a Huffman tree held in an index arena addressed from root.
type Tree struct {
	nodes []node
	root  int32
}

// leafOrder records the DFS-assigned code (left -> 0, right -> 1) for one
// leaf symbol.
type leafOrder struct {
	symbol byte
	path   []byte
}

// Build constructs a Tree from the frequency counts observed in input,
// reproducing the source tool's construction exactly:
//
//  1. Collect one leaf per distinct byte, in the order each byte is first
//     seen in input (not numeric byte order).
//  2. If there are more than two distinct symbols, stable-sort the leaves
//     by descending weight (ties keep the first-seen order from step 1).
//  3. Repeatedly pop the two least-weighted items from the back of this
//     working sequence and combine them into an internal node. If at
//     least two items remain and the new node's weight exceeds the sum
//     of the (new) last two items' weights, insert it three positions
//     before the end instead of appending it. This changes resulting
//     code lengths but never decodability. When fewer than three
//     positions exist to insert before, the insertion point is clamped
//     to the front.
//
// Build never returns nil for a non-empty input.
func Build(input []byte) *Tree {
	if len(input) == 0 {
		return &Tree{nodes: []node{{left: noChild, right: noChild}}, root: 0}
	}

	order := make([]byte, 0, 256)
	weights := make(map[byte]uint32, 256)
	for _, b := range input {
		if _, ok := weights[b]; !ok {
			order = append(order, b)
		}
		weights[b]++
	}

	seq := make([]node, len(order))
	for i, b := range order {
		seq[i] = node{symbol: b, weight: weights[b], left: noChild, right: noChild}
	}

	if len(seq) > 2 {
		sort.SliceStable(seq, func(i, j int) bool { return seq[i].weight > seq[j].weight })
	}

	if len(seq) == 1 {
		return &Tree{nodes: seq, root: 0}
	}

	arena := append([]node(nil), seq...)
	working := make([]int32, len(seq))
	for i := range working {
		working[i] = int32(i)
	}

	for len(working) > 1 {
		i1 := working[len(working)-1]
		i2 := working[len(working)-2]
		working = working[:len(working)-2]

		combined := node{left: i1, right: i2, weight: arena[i1].weight + arena[i2].weight}
		arena = append(arena, combined)
		newIdx := int32(len(arena) - 1)

		placed := false
		if len(working) >= 2 {
			last1 := arena[working[len(working)-1]]
			last2 := arena[working[len(working)-2]]
			if combined.weight > last1.weight+last2.weight {
				pos := len(working) - 3
				if pos < 0 {
					pos = 0
				}
				working = append(working, 0)
				copy(working[pos+1:], working[pos:len(working)-1])
				working[pos] = newIdx
				placed = true
			}
		}
		if !placed {
			working = append(working, newIdx)
		}
	}

	return &Tree{nodes: arena, root: working[0]}
}

// paths performs the DFS code assignment (left -> 0, right -> 1) and
// returns one leafOrder per leaf.
func (t *Tree) paths() []leafOrder {
	var leaves []leafOrder
	var walk func(idx int32, path []byte)
	walk = func(idx int32, path []byte) {
		n := &t.nodes[idx]
		if n.isLeaf() {
			cp := make([]byte, len(path))
			copy(cp, path)
			leaves = append(leaves, leafOrder{symbol: n.symbol, path: cp})
			return
		}
		walk(n.left, append(path, 0))
		walk(n.right, append(path, 1))
	}
	walk(t.root, nil)
	return leaves
}

// SerializeTree writes the tree as a prefix, depth-first bit stream: 1 =
// internal (recurse left then right), 0 = leaf followed by 8 bits of
// symbol. A single-leaf tree (one distinct symbol, or empty input)
// serializes as just that one leaf record.
func (t *Tree) SerializeTree(w *bitio.Writer) {
	var walk func(idx int32)
	walk = func(idx int32) {
		n := &t.nodes[idx]
		if n.isLeaf() {
			w.PutBits(1, 0)
			w.PutBits(8, uint32(n.symbol))
			return
		}
		w.PutBits(1, 1)
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
}

// DeserializeTree iteratively rebuilds a tree from r using an explicit
// stack of pending child slots, matching the source's non-recursive
// reconstruction (recursion depth in the original can reach 255). Each
// stack frame names the parent node index and side (left/right) its
// result must be attached to; the root's slot is marked with
// parent == noChild.
func DeserializeTree(r *bitio.Reader) (*Tree, error) {
	t := &Tree{nodes: make([]node, 0, 64)}

	type slot struct {
		parent int32
		left   bool
	}
	stack := []slot{{parent: noChild}}

	attach := func(s slot, idx int32) {
		if s.parent == noChild {
			t.root = idx
			return
		}
		if s.left {
			t.nodes[s.parent].left = idx
		} else {
			t.nodes[s.parent].right = idx
		}
	}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bit, ok := r.GetBits(1)
		if !ok {
			return nil, ErrTreeMalformed
		}
		if bit == 1 {
			idx := int32(len(t.nodes))
			t.nodes = append(t.nodes, node{left: noChild, right: noChild})
			attach(s, idx)
			// Push right before left so left is processed first (LIFO).
			stack = append(stack, slot{parent: idx, left: false})
			stack = append(stack, slot{parent: idx, left: true})
			continue
		}
		sym, ok := r.GetBits(8)
		if !ok {
			return nil, ErrTreeMalformed
		}
		idx := int32(len(t.nodes))
		t.nodes = append(t.nodes, node{symbol: byte(sym), left: noChild, right: noChild})
		attach(s, idx)
	}
	return t, nil
}

// Encode produces the serialized tree followed by the Huffman-coded
// payload for input.
func Encode(input []byte) []byte {
	tree := Build(input)
	w := bitio.NewWriter(len(input)/2 + 16)
	tree.SerializeTree(w)

	if len(tree.nodes) == 1 {
		return w.Flush()
	}

	codes := make(map[byte][]byte, 256)
	for _, lo := range tree.paths() {
		codes[lo.symbol] = lo.path
	}
	for _, b := range input {
		for _, bit := range codes[b] {
			w.PutBits(1, uint32(bit))
		}
	}
	return w.Flush()
}

// Decode reconstructs the tree from encoded and decodes exactly
// originalSize symbols from the payload that follows it.
func Decode(encoded []byte, originalSize int) ([]byte, error) {
	r := bitio.NewReader(encoded)
	tree, err := DeserializeTree(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, originalSize)

	if len(tree.nodes) == 1 {
		sym := tree.nodes[tree.root].symbol
		for len(out) < originalSize {
			out = append(out, sym)
		}
		return out, nil
	}

	for len(out) < originalSize {
		idx := tree.root
		for {
			n := &tree.nodes[idx]
			if n.isLeaf() {
				out = append(out, n.symbol)
				break
			}
			bit, ok := r.GetBits(1)
			if !ok {
				return nil, ErrPayloadExhausted
			}
			if bit == 0 {
				idx = n.left
			} else {
				idx = n.right
			}
		}
	}
	return out, nil
}
