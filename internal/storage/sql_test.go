package storage

import (
	"strings"
	"testing"

	"medgraph/internal/graph"
	"medgraph/internal/mapper"

	"github.com/stretchr/testify/require"
)

func TestUpsertStatement(t *testing.T) {
	names := []string{"subject_id", "predicate", "object_id", "confidence"}
	got := sqliteDialect.upsert("relationships", names, relationshipKey)
	require.Equal(t,
		`INSERT INTO "relationships" ("subject_id", "predicate", "object_id", "confidence") VALUES (?, ?, ?, ?) `+
			`ON CONFLICT ("subject_id", "predicate", "object_id") DO UPDATE SET "confidence" = EXCLUDED."confidence"`,
		got)

	pg := postgresDialect.upsert("entities", []string{"entity_id", "name"}, entityKey)
	require.Equal(t,
		`INSERT INTO "entities" ("entity_id", "name") VALUES ($1, $2) ON CONFLICT ("entity_id") DO UPDATE SET "name" = EXCLUDED."name"`,
		pg)
}

func TestCreateTableFromColumns(t *testing.T) {
	ddl := sqliteDialect.createTable(entitiesTable, (&mapper.PersistedEntity{}).Columns(), entityKey)
	require.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "entities" (`)
	require.Contains(t, ddl, `"entity_id" TEXT NOT NULL,`)
	require.Contains(t, ddl, `"synonyms" TEXT,`)
	require.Contains(t, ddl, `"evidence_level" INTEGER,`)
	require.True(t, strings.HasSuffix(ddl, `PRIMARY KEY ("entity_id")`+"\n)"))

	rel := postgresDialect.createTable(relationshipsTable, (&mapper.PersistedRelationship{}).Columns(), relationshipKey)
	require.Contains(t, rel, `"confidence" DOUBLE PRECISION NOT NULL,`)
	require.Contains(t, rel, `"evidence_count" BIGINT NOT NULL,`)
	require.Contains(t, rel, `"standard_of_care" BOOLEAN,`)
	require.Contains(t, rel, `PRIMARY KEY ("subject_id", "predicate", "object_id")`)
}

func TestSchemaIndexes(t *testing.T) {
	stmts := schemaStatements(sqliteDialect)
	require.Len(t, stmts, 6)
	require.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_entities_entity_type" ON "entities" ("entity_type")`, stmts[1])
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\%\_a\\b`, escapeLike(`50%_a\b`))
	require.Equal(t, "plain", escapeLike("plain"))
}

func TestRelationshipQuery(t *testing.T) {
	q, args := postgresDialect.relationshipQuery(RelationshipFilter{
		SubjectID:     "HGNC:1100",
		Predicate:     graph.PredEncodes,
		MinConfidence: 0.3,
		PaperID:       "PMC_1",
		Limit:         10,
	})
	require.Contains(t, q, `WHERE "subject_id" = $1 AND "predicate" = $2 AND "confidence" >= $3 AND "source_papers" LIKE $4 ESCAPE '\'`)
	require.True(t, strings.HasSuffix(q, `ORDER BY "confidence" DESC, "subject_id", "predicate", "object_id" LIMIT 10`))
	require.Equal(t, []any{"HGNC:1100", "encodes", 0.3, `%"PMC\_1"%`}, args)

	q, args = sqliteDialect.relationshipQuery(RelationshipFilter{})
	require.NotContains(t, q, "WHERE")
	require.NotContains(t, q, "LIMIT")
	require.Empty(t, args)
}

func TestEntityQuery(t *testing.T) {
	q, args := sqliteDialect.entityQuery(EntityFilter{Type: graph.EntityDrug, NameContains: " Olap "})
	require.Contains(t, q, `WHERE "entity_type" = ? AND LOWER("name") LIKE ? ESCAPE '\' ORDER BY "entity_id"`)
	require.Equal(t, []any{"drug", "%olap%"}, args)
}
