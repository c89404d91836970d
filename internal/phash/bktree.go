package phash

// BKTree indexes fingerprints for similarity lookup using the hex-digit
// Hamming metric. It supports O(log n) average-case search for all
// fingerprints within a distance threshold of a query. All inserted
// fingerprints must share the same length; mixing lengths breaks the
// metric's triangle inequality.
type BKTree struct {
	root *bkNode
}

type bkNode struct {
	hash     string
	id       string
	children map[int]*bkNode // distance -> child node
}

// NewBKTree creates an empty BK-tree.
func NewBKTree() *BKTree {
	return &BKTree{}
}

// Insert adds a fingerprint with its associated record id to the tree.
func (t *BKTree) Insert(hash, id string) {
	node := &bkNode{
		hash:     hash,
		id:       id,
		children: make(map[int]*bkNode),
	}

	if t.root == nil {
		t.root = node
		return
	}

	current := t.root
	for {
		dist := nibbleDistance(hash, current.hash)
		if child, exists := current.children[dist]; exists {
			current = child
		} else {
			current.children[dist] = node
			return
		}
	}
}

// FindWithinDistance returns the record ids of all fingerprints within the
// given distance threshold from the query.
func (t *BKTree) FindWithinDistance(hash string, threshold int) []string {
	if t.root == nil {
		return nil
	}

	var results []string
	t.searchNode(t.root, hash, threshold, &results)
	return results
}

func (t *BKTree) searchNode(node *bkNode, hash string, threshold int, results *[]string) {
	dist := nibbleDistance(hash, node.hash)

	if dist <= threshold {
		*results = append(*results, node.id)
	}

	// Triangle inequality: only children with distance in
	// [dist - threshold, dist + threshold] can match.
	minDist := dist - threshold
	if minDist < 0 {
		minDist = 0
	}
	maxDist := dist + threshold

	for childDist, child := range node.children {
		if childDist >= minDist && childDist <= maxDist {
			t.searchNode(child, hash, threshold, results)
		}
	}
}

// Size returns the number of fingerprints in the tree.
func (t *BKTree) Size() int {
	if t.root == nil {
		return 0
	}
	return countNodes(t.root)
}

func countNodes(node *bkNode) int {
	count := 1
	for _, child := range node.children {
		count += countNodes(child)
	}
	return count
}

// nibbleDistance is HammingDistance for equal-length inputs already
// validated by the caller. Trailing positions of the longer input count as
// differing so an accidental length mix degrades instead of panicking.
func nibbleDistance(a, b string) int {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	dist := len(long) - len(short)
	for i := 0; i < len(short); i++ {
		if a[i] != b[i] {
			dist++
		}
	}
	return dist
}
