package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

const evolutionCypher = `
MERGE (from:RuleVersion {rule_id: $rule_id, version: $from_version})
  ON CREATE SET from.name = $from_name, from.doc_type = $doc_type
MERGE (to:RuleVersion {rule_id: $rule_id, version: $to_version})
  SET to.name = $to_name, to.doc_type = $doc_type
MERGE (doc:Document {id: $document_id})
MERGE (from)-[e:EVOLVED_TO]->(to)
  SET e.at = $at
MERGE (to)-[:LEARNED_FROM]->(doc)
`

// runner executes one write query. Swapped in tests.
type runner func(ctx context.Context, cypher string, params map[string]any) error

// Lineage records rule-version evolution edges in a Neo4j graph.
type Lineage struct {
	driver   neo4j.DriverWithContext
	database string
	run      runner
}

func New(ctx context.Context, uri, user, password, database string) (*Lineage, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	l := &Lineage{driver: driver, database: database}
	l.run = l.execute
	return l, nil
}

func (l *Lineage) Close(ctx context.Context) error {
	if l.driver == nil {
		return nil
	}
	return l.driver.Close(ctx)
}

func (l *Lineage) RecordEvolution(ctx context.Context, from, to domain.ExtractionRule, documentID string) error {
	params := map[string]any{
		"rule_id":      to.ID,
		"from_version": int64(from.Version),
		"to_version":   int64(to.Version),
		"from_name":    from.Name,
		"to_name":      to.Name,
		"doc_type":     string(to.DocType),
		"document_id":  documentID,
		"at":           time.Now().UTC().Format(time.RFC3339),
	}
	if err := l.run(ctx, evolutionCypher, params); err != nil {
		return fmt.Errorf("record rule evolution %s v%d->v%d: %w", to.ID, from.Version, to.Version, err)
	}
	return nil
}

func (l *Lineage) execute(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, l.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(l.database),
		neo4j.ExecuteQueryWithWritersRouting(),
	)
	return err
}
