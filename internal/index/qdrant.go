package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// upsertBatch is the number of points sent per Upsert call.
const upsertBatch = 256

// dropTimeout bounds the collection delete issued by Close.
const dropTimeout = 10 * time.Second

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// CollectionPrefix names the per-ingest collections, which are called
	// "<prefix>-<uuid>" (default: pdfqa).
	CollectionPrefix string
}

// QdrantBuilder builds indices backed by a fresh Qdrant collection per call.
type QdrantBuilder struct {
	// client is the underlying Qdrant gRPC client, shared by every index the
	// builder creates.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg *QdrantConfig
}

// NewQdrantBuilder connects to Qdrant. The connection is lazy; use Client
// with a health check to verify reachability.
func NewQdrantBuilder(cfg *QdrantConfig) (*QdrantBuilder, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "pdfqa"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return &QdrantBuilder{client: client, cfg: cfg}, nil
}

// Client returns the underlying client for readiness probes.
func (b *QdrantBuilder) Client() *qdrant.Client { return b.client }

// Close closes the gRPC connection. Indices built by b become unusable.
func (b *QdrantBuilder) Close() error { return b.client.Close() }

// Build implements rag.Builder. It creates a new cosine collection, upserts
// every chunk with payload {text, page, seq} and waits for the writes to be
// applied. On failure the partial collection is dropped. An empty input
// yields an empty in-memory index, since Qdrant cannot size a collection
// without vectors.
func (b *QdrantBuilder) Build(ctx context.Context, chunks []rag.Chunk, vectors [][]float32) (rag.Searcher, error) {
	dim, err := validate(chunks, vectors)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return &Memory{}, nil
	}

	name := b.cfg.CollectionPrefix + "-" + uuid.NewString()
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
	}

	idx := &qdrantIndex{client: b.client, collection: name, dim: dim, n: len(chunks)}
	if err := idx.upsert(ctx, chunks, vectors); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// qdrantIndex is a rag.Searcher over one Qdrant collection.
type qdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
	n          int
}

func (q *qdrantIndex) upsert(ctx context.Context, chunks []rag.Chunk, vectors [][]float32) error {
	for start := 0; start < len(chunks); start += upsertBatch {
		end := min(start+upsertBatch, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text": chunks[i].Text,
					"page": int64(chunks[i].Page),
					"seq":  int64(i),
				}),
			})
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("qdrant: upsert %d-%d into %q failed: %w", start, end, q.collection, err)
		}
	}
	return nil
}

// Search implements rag.Searcher. Qdrant does not guarantee an order between
// equal scores, so results are re-sorted by (score desc, seq asc).
func (q *qdrantIndex) Search(ctx context.Context, query []float32, k int) ([]rag.Hit, error) {
	if q.n == 0 || k <= 0 {
		return []rag.Hit{}, nil
	}
	if len(query) != q.dim {
		return nil, rag.Errorf(rag.ErrDimensionMismatch,
			"index: query has dimension %d, index has %d", len(query), q.dim)
	}

	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]rag.Hit, 0, len(results))
	for _, r := range results {
		h := rag.Hit{Score: float64(r.GetScore())}
		if p := r.GetPayload(); p != nil {
			h.Text = p["text"].GetStringValue()
			h.Page = int(p["page"].GetIntegerValue())
			h.Seq = int(p["seq"].GetIntegerValue())
		}
		hits = append(hits, h)
	}
	slices.SortStableFunc(hits, func(a, b rag.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return hits, nil
}

// Len implements rag.Searcher.
func (q *qdrantIndex) Len() int { return q.n }

// Dimension implements rag.Searcher.
func (q *qdrantIndex) Dimension() int { return q.dim }

// Close drops the collection. The shared client stays open.
func (q *qdrantIndex) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), dropTimeout)
	defer cancel()
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("qdrant: drop collection %q: %w", q.collection, err)
	}
	return nil
}
