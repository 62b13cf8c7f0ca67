// Package registry holds the in-memory canonical entity index: lookup by
// entity ID, by ontology identifier and by embedding similarity.
package registry

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"medgraph/internal/graph"
	"medgraph/internal/vector"
)

const (
	DefaultTopK      = 5
	DefaultThreshold = 0.85
)

type Match struct {
	Entity     graph.Entity `json:"entity"`
	Similarity float64      `json:"similarity"`
}

type entry struct {
	entity graph.Entity
	norm   float64
}

// Collection is safe for concurrent use. Every upsert, including its index
// maintenance, runs under one write lock.
type Collection struct {
	mu       sync.RWMutex
	dim      int
	byID     map[string]*entry
	order    []string
	ontology map[graph.Ontology]map[string]string
}

// New returns an empty collection. A dim of 0 lets the first embedded entity
// fix the embedding dimension.
func New(dim int) *Collection {
	if dim < 0 {
		dim = 0
	}
	return &Collection{
		dim:      dim,
		byID:     map[string]*entry{},
		ontology: map[graph.Ontology]map[string]string{},
	}
}

// Add validates e and upserts it by entity ID. A replaced entity keeps its
// original insertion position.
func (c *Collection) Add(e graph.Entity) error {
	ne, err := graph.NewEntity(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(ne.Embedding); n > 0 {
		if c.dim != 0 && n != c.dim {
			return &graph.ValidationError{Field: "embedding", Reason: fmt.Sprintf("dimension %d, collection uses %d", n, c.dim)}
		}
		if c.dim == 0 {
			c.dim = n
		}
	}

	id := ne.EntityID
	if old, ok := c.byID[id]; ok {
		c.unindex(old.entity)
		old.entity = ne
		old.norm = vector.Norm(ne.Embedding)
	} else {
		c.byID[id] = &entry{entity: ne, norm: vector.Norm(ne.Embedding)}
		c.order = append(c.order, id)
	}
	for o, oid := range ne.OntologyIDs() {
		idx, ok := c.ontology[o]
		if !ok {
			idx = map[string]string{}
			c.ontology[o] = idx
		}
		idx[oid] = id
	}
	return nil
}

// unindex drops ontology entries that still point at e. An entry another
// entity also carries is handed to the most recently added such entity.
func (c *Collection) unindex(e graph.Entity) {
	for o, oid := range e.OntologyIDs() {
		idx := c.ontology[o]
		if idx == nil || idx[oid] != e.EntityID {
			continue
		}
		delete(idx, oid)
		for i := len(c.order) - 1; i >= 0; i-- {
			id := c.order[i]
			if id == e.EntityID {
				continue
			}
			if c.byID[id].entity.OntologyIDs()[o] == oid {
				idx[oid] = id
				break
			}
		}
	}
}

func (c *Collection) addKind(kind graph.EntityType, e graph.Entity) error {
	if e.Type != kind {
		return &graph.ValidationError{Field: "entity_type", Reason: fmt.Sprintf("expected %s, got %q", kind, e.Type)}
	}
	return c.Add(e)
}

func (c *Collection) AddDisease(e graph.Entity) error   { return c.addKind(graph.EntityDisease, e) }
func (c *Collection) AddGene(e graph.Entity) error      { return c.addKind(graph.EntityGene, e) }
func (c *Collection) AddDrug(e graph.Entity) error      { return c.addKind(graph.EntityDrug, e) }
func (c *Collection) AddProtein(e graph.Entity) error   { return c.addKind(graph.EntityProtein, e) }
func (c *Collection) AddMutation(e graph.Entity) error  { return c.addKind(graph.EntityMutation, e) }
func (c *Collection) AddSymptom(e graph.Entity) error   { return c.addKind(graph.EntitySymptom, e) }
func (c *Collection) AddBiomarker(e graph.Entity) error { return c.addKind(graph.EntityBiomarker, e) }
func (c *Collection) AddPathway(e graph.Entity) error   { return c.addKind(graph.EntityPathway, e) }
func (c *Collection) AddProcedure(e graph.Entity) error { return c.addKind(graph.EntityProcedure, e) }
func (c *Collection) AddPaper(e graph.Entity) error     { return c.addKind(graph.EntityPaper, e) }
func (c *Collection) AddAuthor(e graph.Entity) error    { return c.addKind(graph.EntityAuthor, e) }
func (c *Collection) AddClinicalTrial(e graph.Entity) error {
	return c.addKind(graph.EntityClinicalTrial, e)
}
func (c *Collection) AddHypothesis(e graph.Entity) error {
	return c.addKind(graph.EntityHypothesis, e)
}
func (c *Collection) AddStudyDesign(e graph.Entity) error {
	return c.addKind(graph.EntityStudyDesign, e)
}
func (c *Collection) AddStatisticalMethod(e graph.Entity) error {
	return c.addKind(graph.EntityStatisticalMethod, e)
}
func (c *Collection) AddEvidenceLine(e graph.Entity) error {
	return c.addKind(graph.EntityEvidenceLine, e)
}

func (c *Collection) GetByID(id string) (graph.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	en, ok := c.byID[id]
	if !ok {
		return graph.Entity{}, false
	}
	return en.entity.Clone(), true
}

func (c *Collection) GetByOntology(o graph.Ontology, ontologyID string) (graph.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ontology[o][ontologyID]
	if !ok {
		return graph.Entity{}, false
	}
	return c.byID[id].entity.Clone(), true
}

func (c *Collection) GetByUMLS(id string) (graph.Entity, bool) {
	return c.GetByOntology(graph.OntologyUMLS, id)
}

func (c *Collection) GetByMeSH(id string) (graph.Entity, bool) {
	return c.GetByOntology(graph.OntologyMeSH, id)
}

func (c *Collection) GetByHGNC(id string) (graph.Entity, bool) {
	return c.GetByOntology(graph.OntologyHGNC, id)
}

func (c *Collection) GetByRxNorm(id string) (graph.Entity, bool) {
	return c.GetByOntology(graph.OntologyRxNorm, id)
}

func (c *Collection) GetByUniProt(id string) (graph.Entity, bool) {
	return c.GetByOntology(graph.OntologyUniProt, id)
}

func (c *Collection) GetByLOINC(id string) (graph.Entity, bool) {
	return c.GetByOntology(graph.OntologyLOINC, id)
}

func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *Collection) CountByType() map[graph.EntityType]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[graph.EntityType]int{}
	for _, en := range c.byID {
		out[en.entity.Type]++
	}
	return out
}

// Dimension is the embedding length used by the collection, 0 if not yet known.
func (c *Collection) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dim
}

// Entities returns copies of all entities in insertion order.
func (c *Collection) Entities() []graph.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]graph.Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].entity.Clone())
	}
	return out
}

// ValidateQuery checks the arguments of a similarity search. Every search
// path, including store-backed vector indexes, runs it first.
func ValidateQuery(query []float64, topK int, threshold float64) error {
	if topK < 0 {
		return &graph.ValidationError{Field: "top_k", Reason: "must be >= 0"}
	}
	if math.IsNaN(threshold) || threshold < -1 || threshold > 1 {
		return &graph.ValidationError{Field: "threshold", Reason: "must be within [-1,1]"}
	}
	if len(query) == 0 {
		return &graph.ValidationError{Field: "query", Reason: "is empty"}
	}
	if !vector.Finite(query) {
		return &graph.ValidationError{Field: "query", Reason: "must be finite"}
	}
	if vector.Norm(query) == 0 {
		return &graph.ValidationError{Field: "query", Reason: "has zero magnitude"}
	}
	return nil
}

// FindByEmbedding returns up to topK entities whose cosine similarity to
// query is at least threshold, most similar first. Ties keep insertion order.
func (c *Collection) FindByEmbedding(query []float64, topK int, threshold float64) ([]Match, error) {
	if err := ValidateQuery(query, topK, threshold); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dim == 0 || topK == 0 {
		return []Match{}, nil
	}
	if len(query) != c.dim {
		return nil, &graph.ValidationError{Field: "query", Reason: fmt.Sprintf("dimension %d, collection uses %d", len(query), c.dim)}
	}

	matches := []Match{}
	for _, id := range c.order {
		en := c.byID[id]
		if len(en.entity.Embedding) == 0 || en.norm == 0 {
			continue
		}
		sim, err := vector.Cosine(query, en.entity.Embedding)
		if err != nil {
			continue
		}
		if sim >= threshold {
			matches = append(matches, Match{Entity: en.entity, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	for i := range matches {
		matches[i].Entity = matches[i].Entity.Clone()
	}
	return matches, nil
}
