// Package mock provides func-field test doubles for the external
// collaborators the insert destination consumes: the storage manager, the
// relation catalog entry, its partition scheme, and the value accessor.
package mock

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/moleculadb/insertdest/storage"
)

// NewSchedulerClientID mints a fresh scheduler client id for tests that need
// a unique identifier rather than a fixed placeholder string, the same way
// the teacher mints globally unique ids with google/uuid.
func NewSchedulerClientID() string {
	return uuid.New().String()
}

// Schema is a storage.Schema that accepts everything, or rejects everything,
// depending on ConformsFunc.
type Schema struct {
	ConformsFunc func(t storage.Tuple) bool
	Count        int
}

func (s *Schema) Conforms(t storage.Tuple) bool {
	if s.ConformsFunc == nil {
		return true
	}
	return s.ConformsFunc(t)
}

func (s *Schema) AttributeCount() int { return s.Count }

// Relation is a storage.Relation fake whose block list and partition scheme
// can be set directly by a test.
type Relation struct {
	RelationID   uint32
	Sch          *Schema
	Layout       storage.Layout
	Blocks       []storage.BlockID
	PartScheme   storage.PartitionScheme
	HasPartition bool
}

func NewRelation(id uint32) *Relation {
	return &Relation{RelationID: id, Sch: &Schema{}}
}

func (r *Relation) ID() uint32                { return r.RelationID }
func (r *Relation) Schema() storage.Schema    { return r.Sch }
func (r *Relation) DefaultLayout() storage.Layout { return r.Layout }
func (r *Relation) BlockIDs() []storage.BlockID   { return r.Blocks }

func (r *Relation) PartitionScheme() (storage.PartitionScheme, bool) {
	if !r.HasPartition {
		return nil, false
	}
	return r.PartScheme, true
}

// BlockHandle is a storage.BlockHandle fake backed by a simple capacity
// counter: the Nth insert where N == Capacity reports InsertedFull, any
// insert past that reports NoRoom.
type BlockHandle struct {
	BlockIDVal storage.BlockID
	Capacity   int

	mu      sync.Mutex
	count   int
	Tuples  []storage.Tuple
}

func NewBlockHandle(id storage.BlockID, capacity int) *BlockHandle {
	return &BlockHandle{BlockIDVal: id, Capacity: capacity}
}

func (b *BlockHandle) ID() storage.BlockID { return b.BlockIDVal }

func (b *BlockHandle) Insert(t storage.Tuple) (storage.InsertResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count >= b.Capacity {
		return storage.NoRoom, nil
	}
	b.count++
	b.Tuples = append(b.Tuples, t)
	if b.count >= b.Capacity {
		return storage.InsertedFull, nil
	}
	return storage.Inserted, nil
}

// Len reports how many tuples have landed in this block so far.
func (b *BlockHandle) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Manager is a storage.Manager fake that mints blocks of a fixed capacity
// with monotonically increasing ids, and remembers every block it has ever
// created or loaded so tests can assert on uniqueness.
type Manager struct {
	Capacity int

	mu      sync.Mutex
	nextID  uint64
	blocks  map[storage.BlockID]*BlockHandle
	created int32
	loaded  int32
}

func NewManager(capacity int) *Manager {
	return &Manager{Capacity: capacity, blocks: make(map[storage.BlockID]*BlockHandle)}
}

func (m *Manager) CreateBlock(rel storage.Relation, layout storage.Layout) (storage.BlockHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := storage.BlockID(m.nextID)
	h := NewBlockHandle(id, m.Capacity)
	m.blocks[id] = h
	atomic.AddInt32(&m.created, 1)
	return h, nil
}

func (m *Manager) LoadBlock(id storage.BlockID) (storage.BlockHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.blocks[id]
	if !ok {
		h = NewBlockHandle(id, m.Capacity)
		m.blocks[id] = h
	}
	atomic.AddInt32(&m.loaded, 1)
	return h, nil
}

// LoadBlockHandle registers h under id directly, so a later LoadBlock(id)
// returns this exact handle instead of a freshly minted empty one. Lets a
// test seed a historical block in a specific state (e.g. already full).
func (m *Manager) LoadBlockHandle(id storage.BlockID, h *BlockHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[id] = h
}

// Created reports how many times CreateBlock was called.
func (m *Manager) Created() int32 { return atomic.LoadInt32(&m.created) }

// Loaded reports how many times LoadBlock was called.
func (m *Manager) Loaded() int32 { return atomic.LoadInt32(&m.loaded) }

// Tuple is a storage.Tuple backed by a plain map keyed by attribute id.
type Tuple map[storage.AttributeID]interface{}

func (t Tuple) Value(attr storage.AttributeID) (interface{}, bool) {
	v, ok := t[attr]
	return v, ok
}

// SliceAccessor is a storage.Accessor over an in-memory slice of tuples.
type SliceAccessor struct {
	tuples []storage.Tuple
	pos    int
}

func NewSliceAccessor(tuples []storage.Tuple) *SliceAccessor {
	return &SliceAccessor{tuples: tuples, pos: -1}
}

func (a *SliceAccessor) Next() bool {
	a.pos++
	return a.pos < len(a.tuples)
}

func (a *SliceAccessor) Tuple() storage.Tuple {
	return a.tuples[a.pos]
}

// PartitionScheme is a storage.PartitionScheme fake: PartitionOf delegates
// to PartOf, and BlockPartition answers from the BlockToPt lookup table.
type PartitionScheme struct {
	Count     int
	Attr      storage.AttributeID
	PartOf    func(value interface{}) (int, error)
	BlockToPt map[storage.BlockID]int
}

func (p *PartitionScheme) N() int                                   { return p.Count }
func (p *PartitionScheme) PartitioningAttribute() storage.AttributeID { return p.Attr }

func (p *PartitionScheme) PartitionOf(value interface{}) (int, error) {
	return p.PartOf(value)
}

func (p *PartitionScheme) BlockPartition(id storage.BlockID) (int, bool) {
	pt, ok := p.BlockToPt[id]
	return pt, ok
}
