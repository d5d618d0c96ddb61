package ids

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on release so stale references to
// a despawned entity never alias a later one occupying the same slot.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// Pool allocates entity identifiers with generational indices and a free list.
// Single-goroutine access only (the tick pipeline owns it).
type Pool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *Pool) Allocate() EntityID {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return NewEntityID(idx, p.generations[idx])
}

func (p *Pool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

func (p *Pool) Release(id EntityID) {
	idx := id.Index()
	if idx >= p.nextIndex {
		return
	}
	if p.generations[idx] != id.Generation() {
		return // already released (stale reference)
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}

// Reserve advances the pool so that the given index is never handed out with
// generation zero again. Used at boot when entity rows are restored from the
// store and their ids must stay stable.
func (p *Pool) Reserve(id EntityID) {
	idx := id.Index()
	for p.nextIndex <= idx {
		p.generations = append(p.generations, 0)
		p.nextIndex++
	}
	if p.generations[idx] < id.Generation() {
		p.generations[idx] = id.Generation()
	}
}
