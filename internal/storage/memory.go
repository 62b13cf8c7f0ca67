package storage

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"medgraph/internal/graph"
	"medgraph/internal/mapper"
)

// MemoryStore keeps records in process memory. It is used by tests and by
// single-process development runs.
type MemoryStore struct {
	mu            sync.RWMutex
	entities      map[string]mapper.PersistedEntity
	relationships map[graph.RelationshipKey]mapper.PersistedRelationship
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:      map[string]mapper.PersistedEntity{},
		relationships: map[graph.RelationshipKey]mapper.PersistedRelationship{},
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) PutEntity(_ context.Context, rec mapper.PersistedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[rec.EntityID] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) GetEntity(_ context.Context, id string) (mapper.PersistedEntity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[id]
	if !ok {
		return mapper.PersistedEntity{}, false, nil
	}
	return copyRecord(rec), true, nil
}

func (s *MemoryStore) QueryEntities(_ context.Context, f EntityFilter) ([]mapper.PersistedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(f.NameContains))
	out := []mapper.PersistedEntity{}
	for _, rec := range s.entities {
		if f.Type != "" && rec.EntityType != string(f.Type) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(rec.Name), needle) {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountEntities(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]int{}
	for _, rec := range s.entities {
		out[rec.EntityType]++
	}
	return out, nil
}

func recordKey(rec mapper.PersistedRelationship) graph.RelationshipKey {
	return graph.RelationshipKey{SubjectID: rec.SubjectID, Predicate: graph.PredicateType(rec.Predicate), ObjectID: rec.ObjectID}
}

func (s *MemoryStore) PutRelationship(_ context.Context, rec mapper.PersistedRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[recordKey(rec)] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) GetRelationship(_ context.Context, key graph.RelationshipKey) (mapper.PersistedRelationship, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.relationships[key]
	if !ok {
		return mapper.PersistedRelationship{}, false, nil
	}
	return copyRecord(rec), true, nil
}

func (s *MemoryStore) QueryRelationships(_ context.Context, f RelationshipFilter) ([]mapper.PersistedRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []mapper.PersistedRelationship{}
	for _, rec := range s.relationships {
		if f.SubjectID != "" && rec.SubjectID != f.SubjectID {
			continue
		}
		if f.ObjectID != "" && rec.ObjectID != f.ObjectID {
			continue
		}
		if f.Predicate != "" && rec.Predicate != string(f.Predicate) {
			continue
		}
		if f.MinConfidence > 0 && rec.Confidence < f.MinConfidence {
			continue
		}
		if f.PaperID != "" && !citesPaper(rec.SourcePapers, f.PaperID) {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	sortRelationships(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountRelationships(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]int{}
	for _, rec := range s.relationships {
		out[rec.Predicate]++
	}
	return out, nil
}

func sortRelationships(recs []mapper.PersistedRelationship) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return a.ObjectID < b.ObjectID
	})
}

func citesPaper(sourcePapers, paperID string) bool {
	var papers []string
	if err := json.Unmarshal([]byte(sourcePapers), &papers); err != nil {
		return false
	}
	return slices.Contains(papers, paperID)
}

// copyRecord duplicates the nullable fields of a record so stored values
// never alias caller memory.
func copyRecord[T any](rec T) T {
	v := reflect.ValueOf(&rec).Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.Pointer || f.IsNil() {
			continue
		}
		dup := reflect.New(f.Type().Elem())
		dup.Elem().Set(f.Elem())
		f.Set(dup)
	}
	return rec
}
