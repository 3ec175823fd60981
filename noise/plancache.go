package noise

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/gogpu/terrain/cache"
)

// PlanCache memoizes Compile. Equal graphs, regardless of node order or
// name, map to the same *CompiledGraph. It is safe for concurrent use.
type PlanCache struct {
	plans *cache.ShardedCache[Fingerprint, *CompiledGraph]
}

// DefaultPlanCacheSize is the per-shard capacity of the process-wide cache.
const DefaultPlanCacheSize = 64

var defaultPlans = NewPlanCache(DefaultPlanCacheSize)

// DefaultPlanCache returns the process-wide plan cache.
func DefaultPlanCache() *PlanCache { return defaultPlans }

// NewPlanCache creates a cache holding up to capacity plans per shard.
func NewPlanCache(capacity int) *PlanCache {
	return &PlanCache{plans: cache.NewSharded[Fingerprint, *CompiledGraph](capacity, fingerprintHash)}
}

// Compile returns the cached plan for g, compiling it on first use.
// Compile errors are not cached.
func (pc *PlanCache) Compile(g Graph) (*CompiledGraph, error) {
	key, err := GraphFingerprint(g)
	if err != nil {
		// Unencodable parameters; Compile reports the offending node.
		return Compile(g)
	}
	return pc.plans.GetOrCreateErr(key, func() (*CompiledGraph, error) {
		return Compile(g)
	})
}

// Stats returns the underlying cache counters.
func (pc *PlanCache) Stats() cache.Stats { return pc.plans.Stats() }

// GraphFingerprint hashes the canonical encoding of g: nodes sorted by id,
// name excluded.
func GraphFingerprint(g Graph) (Fingerprint, error) {
	nodes := append([]Node(nil), g.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	doc, err := json.Marshal(nodes)
	if err != nil {
		return Fingerprint{}, err
	}
	return sha256.Sum256(doc), nil
}

func fingerprintHash(f Fingerprint) uint64 {
	return binary.LittleEndian.Uint64(f[:8])
}
