package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stilya/stilya/internal/models"
)

// DgraphKnowledgeGraph mirrors knowledge entries and their concepts into Dgraph
type DgraphKnowledgeGraph struct {
	client *dgo.Dgraph
	conn   *grpc.ClientConn
}

// NewDgraphKnowledgeGraph connects to a Dgraph alpha and installs the schema
func NewDgraphKnowledgeGraph(config *Config) (*DgraphKnowledgeGraph, error) {
	if config == nil {
		config = DefaultConfig()
	}

	conn, err := grpc.Dial(config.DgraphAlphaURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Dgraph: %w", err)
	}

	g := &DgraphKnowledgeGraph{
		client: dgo.NewDgraphClient(api.NewDgraphClient(conn)),
		conn:   conn,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return g, nil
}

func (g *DgraphKnowledgeGraph) initSchema(ctx context.Context) error {
	schema := `
		type KnowledgeEntry {
			entry.id
			entry.category
			entry.updated
			mentions
		}

		type Concept {
			concept.name
			concept.kind
		}

		entry.id: string @index(exact) @upsert .
		entry.category: string @index(exact) .
		entry.updated: datetime .
		mentions: [uid] @reverse .

		concept.name: string @index(exact, term) @upsert .
		concept.kind: string @index(exact) .
	`

	return g.client.Alter(ctx, &api.Operation{Schema: schema})
}

type conceptNode struct {
	UID   string `json:"uid"`
	Name  string `json:"concept.name"`
	Kind  string `json:"concept.kind"`
	DType string `json:"dgraph.type"`
}

type entryNode struct {
	UID      string        `json:"uid"`
	ID       string        `json:"entry.id"`
	Category string        `json:"entry.category"`
	Updated  string        `json:"entry.updated"`
	Mentions []conceptNode `json:"mentions"`
	DType    string        `json:"dgraph.type"`
}

// UpsertEntry records the entry and links it to each of its concepts. An
// existing entry with the same id has its concept edges replaced.
func (g *DgraphKnowledgeGraph) UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error {
	node := entryNode{
		UID:      "uid(e)",
		ID:       entry.EntryID,
		Category: entry.Category,
		Updated:  time.Now().Format(time.RFC3339),
		DType:    "KnowledgeEntry",
	}

	kinds := make([]string, 0, len(entry.Concepts))
	for kind := range entry.Concepts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	n := 0
	for _, kind := range kinds {
		for _, name := range entry.Concepts[kind] {
			node.Mentions = append(node.Mentions, conceptNode{
				UID:   fmt.Sprintf("_:c%d", n),
				Name:  name,
				Kind:  kind,
				DType: "Concept",
			})
			n++
		}
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	req := &api.Request{
		Query: `query q($id: string) { e as var(func: eq(entry.id, $id)) }`,
		Vars:  map[string]string{"$id": entry.EntryID},
		Mutations: []*api.Mutation{
			{DelNquads: []byte(`uid(e) <mentions> * .`)},
			{SetJson: data},
		},
		CommitNow: true,
	}

	txn := g.client.NewTxn()
	defer txn.Discard(ctx)

	if _, err := txn.Do(ctx, req); err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	return nil
}

// RelatedConcepts walks concept -> entries -> concepts
func (g *DgraphKnowledgeGraph) RelatedConcepts(ctx context.Context, concept string, limit int) ([]string, error) {
	q := `query related($name: string) {
		related(func: eq(concept.name, $name)) {
			~mentions {
				mentions {
					concept.name
				}
			}
		}
	}`

	txn := g.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	resp, err := txn.QueryWithVars(ctx, q, map[string]string{"$name": concept})
	if err != nil {
		return nil, fmt.Errorf("related query failed: %w", err)
	}

	var result struct {
		Related []struct {
			Entries []struct {
				Mentions []conceptNode `json:"mentions"`
			} `json:"~mentions"`
		} `json:"related"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	counts := map[string]int{}
	for _, r := range result.Related {
		for _, e := range r.Entries {
			for _, m := range e.Mentions {
				if m.Name != concept {
					counts[m.Name]++
				}
			}
		}
	}
	return topCounts(counts, limit), nil
}

// Close closes the Dgraph connection
func (g *DgraphKnowledgeGraph) Close() error {
	return g.conn.Close()
}

// MemoryKnowledgeGraph is an in-process co-occurrence graph used when Dgraph
// is not configured
type MemoryKnowledgeGraph struct {
	entries map[string][]string // entry id -> concepts
	mu      sync.RWMutex
}

// NewMemoryKnowledgeGraph creates an empty graph
func NewMemoryKnowledgeGraph() *MemoryKnowledgeGraph {
	return &MemoryKnowledgeGraph{entries: make(map[string][]string)}
}

// UpsertEntry replaces the concepts of an entry
func (g *MemoryKnowledgeGraph) UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error {
	var concepts []string
	for _, names := range entry.Concepts {
		concepts = append(concepts, names...)
	}

	g.mu.Lock()
	g.entries[entry.EntryID] = concepts
	g.mu.Unlock()
	return nil
}

// RelatedConcepts returns concepts sharing an entry with concept
func (g *MemoryKnowledgeGraph) RelatedConcepts(ctx context.Context, concept string, limit int) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := map[string]int{}
	for _, concepts := range g.entries {
		found := false
		for _, c := range concepts {
			if c == concept {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		for _, c := range concepts {
			if c != concept {
				counts[c]++
			}
		}
	}
	return topCounts(counts, limit), nil
}

// Close is a no-op
func (g *MemoryKnowledgeGraph) Close() error { return nil }

func topCounts(counts map[string]int, limit int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names
}
