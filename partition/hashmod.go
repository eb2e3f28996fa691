// Package partition provides concrete storage.PartitionScheme
// implementations. HashModScheme, the one used by this module's tests and
// recommended for relations without a more specific scheme, reduces the
// partitioning attribute's value to [0, N) via xxhash.
package partition

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/moleculadb/insertdest/storage"
)

// HashModScheme partitions by hashing the byte representation of the
// partitioning attribute's value and reducing mod N.
type HashModScheme struct {
	n    int
	attr storage.AttributeID

	mu        sync.Mutex
	blockPart map[storage.BlockID]int
}

// NewHashModScheme returns a scheme with n partitions routing on attr.
func NewHashModScheme(n int, attr storage.AttributeID) *HashModScheme {
	if n <= 0 {
		panic("partition: n must be positive")
	}
	return &HashModScheme{
		n:         n,
		attr:      attr,
		blockPart: make(map[storage.BlockID]int),
	}
}

func (s *HashModScheme) N() int { return s.n }

func (s *HashModScheme) PartitioningAttribute() storage.AttributeID { return s.attr }

func (s *HashModScheme) PartitionOf(value interface{}) (int, error) {
	b, err := toBytes(value)
	if err != nil {
		return 0, err
	}
	h := xxhash.Sum64(b)
	return int(h % uint64(s.n)), nil
}

// RecordBlock remembers which partition a newly created block belongs to, so
// a later AddAllBlocksFromRelation bootstrap can route it to the right pool.
func (s *HashModScheme) RecordBlock(id storage.BlockID, part int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockPart[id] = part
}

func (s *HashModScheme) BlockPartition(id storage.BlockID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.blockPart[id]
	return p, ok
}

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case int:
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), nil
	case uint64:
		return []byte(strconv.FormatUint(v, 10)), nil
	default:
		return nil, fmt.Errorf("partition: unsupported partitioning attribute value type %T", value)
	}
}
