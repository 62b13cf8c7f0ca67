package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"medgraph/internal/mapper"
)

const (
	entitiesTable      = "entities"
	relationshipsTable = "relationships"
)

var (
	entityKey       = []string{"entity_id"}
	relationshipKey = []string{"subject_id", "predicate", "object_id"}
)

// dialect carries the few differences between the SQL backends.
type dialect struct {
	name  string
	bind  func(n int) string
	types map[reflect.Kind]string
}

var sqliteDialect = dialect{
	name: "sqlite",
	bind: func(int) string { return "?" },
	types: map[reflect.Kind]string{
		reflect.String:  "TEXT",
		reflect.Int:     "INTEGER",
		reflect.Int64:   "INTEGER",
		reflect.Float64: "REAL",
		reflect.Bool:    "INTEGER",
	},
}

var postgresDialect = dialect{
	name: "postgres",
	bind: func(n int) string { return "$" + strconv.Itoa(n) },
	types: map[reflect.Kind]string{
		reflect.String:  "TEXT",
		reflect.Int:     "BIGINT",
		reflect.Int64:   "BIGINT",
		reflect.Float64: "DOUBLE PRECISION",
		reflect.Bool:    "BOOLEAN",
	},
}

func quote(name string) string { return `"` + name + `"` }

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}

func columnNames(cols []mapper.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// createTable renders DDL for a record type from its column tags.
func (d dialect) createTable(table string, cols []mapper.Column, pk []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quote(table))
	for _, c := range cols {
		fmt.Fprintf(&b, "  %s %s", quote(c.Name), d.types[c.Kind()])
		if !c.Nullable() {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
	}
	fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n)", strings.Join(quoteAll(pk), ", "))
	return b.String()
}

func createIndex(table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quote("idx_"+table+"_"+column), quote(table), quote(column))
}

// upsert renders an INSERT that replaces every non-key column on conflict.
func (d dialect) upsert(table string, names, pk []string) string {
	binds := make([]string, len(names))
	for i := range names {
		binds[i] = d.bind(i + 1)
	}
	isKey := map[string]bool{}
	for _, k := range pk {
		isKey[k] = true
	}
	var sets []string
	for _, n := range names {
		if !isKey[n] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(n), quote(n)))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quote(table), strings.Join(quoteAll(names), ", "), strings.Join(binds, ", "),
		strings.Join(quoteAll(pk), ", "), strings.Join(sets, ", "))
}

func selectFrom(table string, names []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteAll(names), ", "), quote(table))
}

type conditions struct {
	d       dialect
	clauses []string
	args    []any
}

// add appends a clause; %s in expr is replaced by the next bind parameter.
func (c *conditions) add(expr string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(expr, c.d.bind(len(c.args))))
}

func (c *conditions) String() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return " LIMIT " + strconv.Itoa(n)
}

func (d dialect) getEntity() string {
	return selectFrom(entitiesTable, mapper.EntityColumnNames()) + " WHERE " + quote("entity_id") + " = " + d.bind(1)
}

func (d dialect) getRelationship() string {
	return selectFrom(relationshipsTable, mapper.RelationshipColumnNames()) + fmt.Sprintf(" WHERE %s = %s AND %s = %s AND %s = %s",
		quote("subject_id"), d.bind(1), quote("predicate"), d.bind(2), quote("object_id"), d.bind(3))
}

func (d dialect) entityQuery(f EntityFilter) (string, []any) {
	c := conditions{d: d}
	if f.Type != "" {
		c.add(quote("entity_type")+" = %s", string(f.Type))
	}
	if s := strings.TrimSpace(f.NameContains); s != "" {
		c.add("LOWER("+quote("name")+`) LIKE %s ESCAPE '\'`, "%"+escapeLike(strings.ToLower(s))+"%")
	}
	q := selectFrom(entitiesTable, mapper.EntityColumnNames()) + c.String() +
		" ORDER BY " + quote("entity_id") + limitClause(f.Limit)
	return q, c.args
}

func (d dialect) relationshipQuery(f RelationshipFilter) (string, []any) {
	c := conditions{d: d}
	if f.SubjectID != "" {
		c.add(quote("subject_id")+" = %s", f.SubjectID)
	}
	if f.ObjectID != "" {
		c.add(quote("object_id")+" = %s", f.ObjectID)
	}
	if f.Predicate != "" {
		c.add(quote("predicate")+" = %s", string(f.Predicate))
	}
	if f.MinConfidence > 0 {
		c.add(quote("confidence")+" >= %s", f.MinConfidence)
	}
	if f.PaperID != "" {
		c.add(quote("source_papers")+` LIKE %s ESCAPE '\'`, "%"+escapeLike(jsonString(f.PaperID))+"%")
	}
	q := selectFrom(relationshipsTable, mapper.RelationshipColumnNames()) + c.String() +
		fmt.Sprintf(" ORDER BY %s DESC, %s, %s, %s", quote("confidence"), quote("subject_id"), quote("predicate"), quote("object_id")) +
		limitClause(f.Limit)
	return q, c.args
}

func countBy(table, column string) string {
	return fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s", quote(column), quote(table), quote(column))
}

// escapeLike makes s match literally inside a LIKE pattern using '\' as escape.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// jsonString is s as it appears inside the source_papers JSON array.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func values(cols []mapper.Column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.Value()
	}
	return out
}

func scanTargets(cols []mapper.Column) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.Ptr
	}
	return out
}
