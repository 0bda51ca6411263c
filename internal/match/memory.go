package match

import (
	"context"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

const memoryMaxNeighbors = 16

type memoryNode struct {
	photoID    uuid.UUID
	uploadedAt time.Time
}

type eventGraph struct {
	graph      *hnsw.Graph[int64]
	nodes      map[int64]memoryNode
	photoNodes map[uuid.UUID][]int64
	nextID     int64
}

func newEventGraph() *eventGraph {
	g := hnsw.NewGraph[int64]()
	g.M = memoryMaxNeighbors
	g.Ml = 1.0 / float64(memoryMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return &eventGraph{
		graph:      g,
		nodes:      make(map[int64]memoryNode),
		photoNodes: make(map[uuid.UUID][]int64),
	}
}

// MemoryIndex keeps per-event HNSW graphs in process. It serves
// deployments without pgvector and the tests; scores are re-computed
// exactly from the stored vectors, so results match the store-backed
// index. Insert is atomic per photo id: a query sees either the old or
// the new descriptor set, never a partial one.
type MemoryIndex struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*eventGraph
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{events: make(map[uuid.UUID]*eventGraph)}
}

func (m *MemoryIndex) Insert(ctx context.Context, eventID, photoID uuid.UUID, uploadedAt time.Time, descriptors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	eg, ok := m.events[eventID]
	if !ok {
		eg = newEventGraph()
		m.events[eventID] = eg
	}

	eg.removePhoto(photoID)

	ids := make([]int64, 0, len(descriptors))
	for _, d := range descriptors {
		if len(d) == 0 {
			continue
		}
		id := eg.nextID
		eg.nextID++
		eg.graph.Add(hnsw.MakeNode(id, d))
		eg.nodes[id] = memoryNode{photoID: photoID, uploadedAt: uploadedAt}
		ids = append(ids, id)
	}
	eg.photoNodes[photoID] = ids
	return nil
}

func (m *MemoryIndex) Remove(ctx context.Context, eventID, photoID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eg, ok := m.events[eventID]; ok {
		eg.removePhoto(photoID)
	}
	return nil
}

func (eg *eventGraph) removePhoto(photoID uuid.UUID) {
	for _, id := range eg.photoNodes[photoID] {
		eg.graph.Delete(id)
		delete(eg.nodes, id)
	}
	delete(eg.photoNodes, photoID)
	// hnsw rejects Add on a graph whose last node was deleted, so an
	// emptied graph is swapped for a fresh one.
	if len(eg.nodes) == 0 {
		eg.graph = newEventGraph().graph
	}
}

func (m *MemoryIndex) Search(ctx context.Context, eventID uuid.UUID, query []float32, threshold float64) ([]PhotoMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eg, ok := m.events[eventID]
	if !ok || len(eg.nodes) == 0 {
		return nil, nil
	}

	// Ask for every node: at the expected per-event scale this mirrors
	// the linear-scan policy while keeping the ANN structure warm for
	// larger pools.
	neighbors := eg.graph.Search(query, len(eg.nodes))

	best := make(map[uuid.UUID]PhotoMatch)
	for _, n := range neighbors {
		meta, ok := eg.nodes[n.Key]
		if !ok {
			continue
		}
		score := CosineSimilarity(query, n.Value)
		if score < threshold {
			continue
		}
		if cur, ok := best[meta.photoID]; !ok || float32(score) > cur.Score {
			best[meta.photoID] = PhotoMatch{
				PhotoID:    meta.photoID,
				Score:      float32(score),
				UploadedAt: meta.uploadedAt,
			}
		}
	}

	matches := make([]PhotoMatch, 0, len(best))
	for _, pm := range best {
		matches = append(matches, pm)
	}
	return matches, nil
}
