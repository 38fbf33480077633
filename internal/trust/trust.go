// Package trust stores who accepts debts from whom without confirmation.
package trust

import (
	"context"
	"fmt"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/graph"
)

// Store is implemented by the relational stores and by GraphStore.
type Store interface {
	Trust(ctx context.Context, truster, trusted int64) error
	Untrust(ctx context.Context, truster, trusted int64) error
	Trusts(ctx context.Context, truster, trusted int64) (bool, error)
	ListTrusted(ctx context.Context, truster int64) ([]domain.TrustRelation, error)
}

// DefaultMaxHops bounds transitive trust searches.
const DefaultMaxHops = 4

// GraphStore keeps trust as (:User)-[:TRUSTS]->(:User) relationships.
type GraphStore struct {
	client graph.Client
	nowFn  func() time.Time
}

// NewGraphStore wraps a graph client.
func NewGraphStore(client graph.Client) *GraphStore {
	return &GraphStore{client: client, nowFn: time.Now}
}

// WithClock overrides the time stamped on new relations.
func (s *GraphStore) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

const trustCypher = `
MERGE (a:User {id: $truster})
MERGE (b:User {id: $trusted})
MERGE (a)-[r:TRUSTS]->(b)
ON CREATE SET r.created_at = $now
`

const untrustCypher = `
MATCH (:User {id: $truster})-[r:TRUSTS]->(:User {id: $trusted})
DELETE r
`

const trustsCypher = `
OPTIONAL MATCH (:User {id: $truster})-[r:TRUSTS]->(:User {id: $trusted})
RETURN r IS NOT NULL AS trusted
`

const listTrustedCypher = `
MATCH (:User {id: $truster})-[r:TRUSTS]->(b:User)
RETURN b.id AS trusted_id, r.created_at AS created_at
ORDER BY trusted_id
`

// Variable-length bounds cannot be parameters, so the hop limit is formatted in.
const pathCypher = `
MATCH p = shortestPath((a:User {id: $from})-[:TRUSTS*1..%d]->(b:User {id: $to}))
RETURN length(p) AS hops
`

// Trust implements Store.
func (s *GraphStore) Trust(ctx context.Context, truster, trusted int64) error {
	if truster == trusted {
		return domain.Errorf(domain.CodeSelfDebt, "a user cannot trust themselves")
	}
	_, err := s.client.ExecuteWrite(ctx, trustCypher, map[string]any{
		"truster": truster,
		"trusted": trusted,
		"now":     s.nowFn().UTC(),
	})
	if err != nil {
		return fmt.Errorf("trust %d -> %d: %w", truster, trusted, err)
	}
	return nil
}

// Untrust implements Store.
func (s *GraphStore) Untrust(ctx context.Context, truster, trusted int64) error {
	_, err := s.client.ExecuteWrite(ctx, untrustCypher, map[string]any{
		"truster": truster,
		"trusted": trusted,
	})
	if err != nil {
		return fmt.Errorf("untrust %d -> %d: %w", truster, trusted, err)
	}
	return nil
}

// Trusts implements Store.
func (s *GraphStore) Trusts(ctx context.Context, truster, trusted int64) (bool, error) {
	res, err := s.client.ExecuteRead(ctx, trustsCypher, map[string]any{
		"truster": truster,
		"trusted": trusted,
	})
	if err != nil {
		return false, fmt.Errorf("check trust %d -> %d: %w", truster, trusted, err)
	}
	return len(res.Records) > 0 && res.Records[0].Bool("trusted"), nil
}

// ListTrusted implements Store.
func (s *GraphStore) ListTrusted(ctx context.Context, truster int64) ([]domain.TrustRelation, error) {
	res, err := s.client.ExecuteRead(ctx, listTrustedCypher, map[string]any{"truster": truster})
	if err != nil {
		return nil, fmt.Errorf("list trusted by %d: %w", truster, err)
	}
	out := make([]domain.TrustRelation, 0, len(res.Records))
	for _, rec := range res.Records {
		id, err := rec.Int64("trusted_id")
		if err != nil {
			return nil, err
		}
		rel := domain.TrustRelation{TrusterID: truster, TrustedID: id}
		if at, ok := rec["created_at"].(time.Time); ok {
			rel.CreatedAt = at
		}
		out = append(out, rel)
	}
	return out, nil
}

// PathLength returns the number of TRUSTS hops on the shortest chain from one user to
// another, or false when no chain of at most maxHops exists.
func (s *GraphStore) PathLength(ctx context.Context, from, to int64, maxHops int) (int, bool, error) {
	if from == to {
		return 0, true, nil
	}
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	res, err := s.client.ExecuteRead(ctx, fmt.Sprintf(pathCypher, maxHops), map[string]any{
		"from": from,
		"to":   to,
	})
	if err != nil {
		return 0, false, fmt.Errorf("trust path %d -> %d: %w", from, to, err)
	}
	if len(res.Records) == 0 {
		return 0, false, nil
	}
	hops, err := res.Records[0].Int64("hops")
	if err != nil {
		return 0, false, err
	}
	return int(hops), true, nil
}

var _ Store = (*GraphStore)(nil)
