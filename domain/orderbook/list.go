package orderbook

import "github.com/holiman/uint256"

// orderList is one side of the book: an arena of nodes keyed by id plus
// the anchor. Walking from anchor.next yields strict price-then-FIFO order.
type orderList struct {
	side   Side
	anchor node
	nodes  map[OrderID]*node
}

func newOrderList(side Side) *orderList {
	return &orderList{
		side:  side,
		nodes: make(map[OrderID]*node),
	}
}

func (l *orderList) head() OrderID {
	return l.anchor.next
}

// get resolves id to a node; the anchor always resolves.
func (l *orderList) get(id OrderID) (*node, bool) {
	if id == Anchor {
		return &l.anchor, true
	}
	n, ok := l.nodes[id]
	return n, ok
}

// worse reports whether price a ranks strictly behind price b on this side.
func (l *orderList) worse(a, b *uint256.Int) bool {
	if l.side == Bid {
		return a.Lt(b)
	}
	return a.Gt(b)
}

// crossed reports whether a resting order at price can trade with an
// incoming order limited at limit.
func (l *orderList) crossed(price, limit *uint256.Int) bool {
	return !l.worse(price, limit)
}

// findInsertPrev walks forward from hint and returns the id the new node
// must follow: the last node whose price is not worse than price. At most
// maxSteps forward steps are taken. A hint already past that position
// restarts the walk at the anchor under the same cap.
func (l *orderList) findInsertPrev(hint OrderID, price *uint256.Int, maxSteps int) (OrderID, error) {
	cur, ok := l.get(hint)
	if !ok {
		return 0, ErrNonExistingOrder
	}
	if hint != Anchor && l.worse(&cur.price, price) {
		return l.findInsertPrev(Anchor, price, maxSteps)
	}

	id := hint
	for steps := 0; ; steps++ {
		if cur.next == Anchor {
			return id, nil
		}
		next := l.nodes[cur.next]
		if l.worse(&next.price, price) {
			return id, nil
		}
		if steps == maxSteps {
			return 0, ErrInvalidPrevReference
		}
		id, cur = cur.next, next
	}
}

// findPrev walks forward from prev until it finds the node whose next is
// target, taking at most maxSteps forward steps.
func (l *orderList) findPrev(prev, target OrderID, maxSteps int) (OrderID, error) {
	cur, ok := l.get(prev)
	if !ok {
		return 0, ErrNonExistingOrder
	}

	id := prev
	for steps := 0; ; steps++ {
		if cur.next == target {
			return id, nil
		}
		if cur.next == Anchor || steps == maxSteps {
			return 0, ErrInvalidPrevReference
		}
		id, cur = cur.next, l.nodes[cur.next]
	}
}

func (l *orderList) link(prev, id OrderID, n *node) {
	p, _ := l.get(prev)
	n.next = p.next
	p.next = id
	l.nodes[id] = n
}

// unlink removes id, which must directly follow prev, and zeroes it.
func (l *orderList) unlink(prev, id OrderID) {
	p, _ := l.get(prev)
	n := l.nodes[id]
	p.next = n.next
	*n = node{}
	delete(l.nodes, id)
}

// walk visits live nodes from the head until fn returns false.
func (l *orderList) walk(fn func(id OrderID, n *node) bool) {
	for id := l.anchor.next; id != Anchor; {
		n := l.nodes[id]
		if !fn(id, n) {
			return
		}
		id = n.next
	}
}

func (l *orderList) size() int {
	return len(l.nodes)
}
