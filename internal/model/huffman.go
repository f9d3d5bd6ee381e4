package model

// node is one entry of the Huffman tree.
type node struct {
	Parent, Left, Right int32
	Count               int64
	Binary              bool
}

// huffmanTree holds the tree plus each leaf's path (internal node indices
// visited leaf-to-root) and codes (the bit at each step), built by
// buildHuffmanTree.
type huffmanTree struct {
	nodes []node
	paths [][]int32
	codes [][]bool
}

// buildHuffmanTree builds a tree of 2*osz-1 nodes from leaf counts using
// a two-pointer merge: leaf descends from osz-1, node ascends from osz;
// each merge picks the two currently smallest nodes from either pointer.
func buildHuffmanTree(counts []int64) *huffmanTree {
	osz := len(counts)
	nodes := make([]node, 2*osz-1)
	for i := range nodes {
		nodes[i] = node{Parent: -1, Left: -1, Right: -1, Count: int64(1e15), Binary: false}
	}
	for i := 0; i < osz; i++ {
		nodes[i].Count = counts[i]
	}

	leaf := int32(osz - 1)
	next := int32(osz)
	for node_ := int32(osz); node_ < int32(2*osz-1); node_++ {
		mins := [2]int32{}
		for i := 0; i < 2; i++ {
			if leaf >= 0 && nodes[leaf].Count < nodes[next].Count {
				mins[i] = leaf
				leaf--
			} else {
				mins[i] = next
				next++
			}
		}
		nodes[node_].Left = mins[0]
		nodes[node_].Right = mins[1]
		nodes[node_].Count = nodes[mins[0]].Count + nodes[mins[1]].Count
		nodes[mins[0]].Parent = node_
		nodes[mins[1]].Parent = node_
		nodes[mins[1]].Binary = true
	}

	t := &huffmanTree{nodes: nodes, paths: make([][]int32, osz), codes: make([][]bool, osz)}
	for i := 0; i < osz; i++ {
		var path []int32
		var code []bool
		j := int32(i)
		for nodes[j].Parent != -1 {
			path = append(path, nodes[j].Parent-int32(osz))
			code = append(code, nodes[j].Binary)
			j = nodes[j].Parent
		}
		t.paths[i] = path
		t.codes[i] = code
	}
	return t
}
