package predicate

import (
	"sort"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

// Anchor is the last entry of a page a query has already seen. Anchors let
// the member resume ordering at a known position instead of from the start.
type Anchor struct {
	Page  int
	Key   interface{}
	Value interface{}
}

// PagingPredicate filters with an optional inner predicate and returns one
// page of the ordered result per query.
type PagingPredicate struct {
	inner         Predicate
	comparator    Comparator
	pageSize      int
	page          int
	iterationType IterationType
	anchors       []Anchor
}

// Paging creates a paging predicate over inner (nil pages over all entries).
// comparator may be nil for natural ordering. It panics if pageSize is not
// positive or inner is itself a paging predicate.
func Paging(inner Predicate, pageSize int, comparator Comparator) *PagingPredicate {
	if pageSize <= 0 {
		panic("predicate: page size must be positive")
	}
	if _, nested := inner.(*PagingPredicate); nested {
		panic("predicate: nested paging predicates are not supported")
	}
	if isNil(inner) {
		inner = nil
	}
	if isNil(comparator) {
		comparator = nil
	}
	return &PagingPredicate{
		inner:         inner,
		comparator:    comparator,
		pageSize:      pageSize,
		iterationType: IterationEntry,
	}
}

func (*PagingPredicate) isPredicate() {}

// --------------------------------------------------------------------------
// Navigation
// --------------------------------------------------------------------------

// Page returns the current zero based page.
func (p *PagingPredicate) Page() int { return p.page }

// PageSize returns the number of entries per page.
func (p *PagingPredicate) PageSize() int { return p.pageSize }

// SetPage jumps to page n.
func (p *PagingPredicate) SetPage(n int) error {
	if n < 0 {
		return errs.Newf(errs.CodeIllegalArgument, "page must not be negative, got %d", n)
	}
	p.page = n
	return nil
}

// NextPage advances one page.
func (p *PagingPredicate) NextPage() {
	p.page++
}

// PreviousPage goes back one page and stays at page 0.
func (p *PagingPredicate) PreviousPage() {
	if p.page > 0 {
		p.page--
	}
}

// Reset returns to page 0 and forgets all anchors.
func (p *PagingPredicate) Reset() {
	p.page = 0
	p.anchors = nil
}

func (p *PagingPredicate) Predicate() Predicate { return p.inner }

func (p *PagingPredicate) Comparator() Comparator { return p.comparator }

func (p *PagingPredicate) IterationType() IterationType { return p.iterationType }

// SetIterationType is set by the map proxy from the query it runs.
func (p *PagingPredicate) SetIterationType(t IterationType) {
	p.iterationType = t
}

// --------------------------------------------------------------------------
// Anchors
// --------------------------------------------------------------------------

// Anchors returns a copy of the known anchors ordered by page.
func (p *PagingPredicate) Anchors() []Anchor {
	out := make([]Anchor, len(p.anchors))
	copy(out, p.anchors)
	return out
}

// MergeAnchors records the anchors returned by a member. An anchor replaces
// a known anchor of the same page.
func (p *PagingPredicate) MergeAnchors(anchors []Anchor) {
	for _, a := range anchors {
		i := sort.Search(len(p.anchors), func(i int) bool { return p.anchors[i].Page >= a.Page })
		if i < len(p.anchors) && p.anchors[i].Page == a.Page {
			p.anchors[i] = a
			continue
		}
		p.anchors = append(p.anchors, Anchor{})
		copy(p.anchors[i+1:], p.anchors[i:])
		p.anchors[i] = a
	}
}

// NearestAnchor returns the anchor of the highest page before the current
// page. Without one the query starts at the first entry.
func (p *PagingPredicate) NearestAnchor() (Anchor, bool) {
	return NearestAnchor(p.anchors, p.page)
}

// NearestAnchor finds the anchor with the highest page below page in a slice
// ordered by page.
func NearestAnchor(anchors []Anchor, page int) (Anchor, bool) {
	i := sort.Search(len(anchors), func(i int) bool { return anchors[i].Page >= page })
	if i == 0 {
		return Anchor{}, false
	}
	return anchors[i-1], true
}

// --------------------------------------------------------------------------
// Identified Data Serializable
// --------------------------------------------------------------------------

func (*PagingPredicate) FactoryID() int32 { return FactoryID }

func (*PagingPredicate) ClassID() int32 { return PagingClassID }

func (p *PagingPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	if err := out.WriteObject(p.inner); err != nil {
		return err
	}
	if err := out.WriteObject(p.comparator); err != nil {
		return err
	}
	out.WriteInt32(int32(p.page))
	out.WriteInt32(int32(p.pageSize))
	out.WriteString(p.iterationType.String())
	out.WriteInt32(int32(len(p.anchors)))
	for _, a := range p.anchors {
		out.WriteInt32(int32(a.Page))
		if err := out.WriteObject(a.Key); err != nil {
			return err
		}
		if err := out.WriteObject(a.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p *PagingPredicate) ReadData(in *serialization.ObjectDataInput) error {
	inner, err := in.ReadObject()
	if err != nil {
		return err
	}
	if inner != nil {
		pred, ok := inner.(Predicate)
		if !ok {
			return errs.Newf(errs.CodeSerialization, "bad tag: expected a predicate, got %T", inner)
		}
		p.inner = pred
	}
	cmp, err := in.ReadObject()
	if err != nil {
		return err
	}
	if cmp != nil {
		c, ok := cmp.(Comparator)
		if !ok {
			return errs.Newf(errs.CodeSerialization, "bad tag: expected a comparator, got %T", cmp)
		}
		p.comparator = c
	}
	p.page = int(in.ReadInt32())
	p.pageSize = int(in.ReadInt32())
	iterationType := in.ReadString()
	if in.Err() != nil {
		return in.Err()
	}
	if p.iterationType, err = ParseIterationType(iterationType); err != nil {
		return err
	}
	if p.page < 0 || p.pageSize <= 0 {
		return errs.Newf(errs.CodeSerialization, "malformed paging predicate: page %d, page size %d", p.page, p.pageSize)
	}
	n := in.ReadInt32()
	if err := checkCount(in, n); err != nil {
		return err
	}
	p.anchors = nil
	for i := int32(0); i < n; i++ {
		a := Anchor{Page: int(in.ReadInt32())}
		if a.Key, err = in.ReadObject(); err != nil {
			return err
		}
		if a.Value, err = in.ReadObject(); err != nil {
			return err
		}
		p.anchors = append(p.anchors, a)
	}
	return nil
}
