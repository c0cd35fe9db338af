package index

import (
	"context"
	"fmt"
	"sort"
	"strings"

	qdrant "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/spigell/interview-coach/internal/knowledge"
)

const upsertBatchSize = 100

// Qdrant is the remote index backend. One collection per model identity: the
// collection name embeds the sanitized model string, so a model bump can
// never hit a stale collection.
type Qdrant struct {
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string
	dimension   int
	count       int
	logger      *zap.Logger
}

// NewQdrant builds a Qdrant backend over an established grpc connection.
func NewQdrant(conn grpc.ClientConnInterface, prefix, model string, logger *zap.Logger) *Qdrant {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Qdrant{
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		collection:  CollectionName(prefix, model),
		logger:      logger,
	}
}

// CollectionName derives the collection for a model identity. Characters
// outside [a-z0-9-_] are folded to '-'.
func CollectionName(prefix, model string) string {
	sanitize := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			default:
				return '-'
			}
		}, s)
	}

	prefix = sanitize(prefix)
	if prefix == "" {
		prefix = "coach"
	}

	return prefix + "_" + sanitize(model)
}

func (q *Qdrant) Collection() string {
	return q.collection
}

func (q *Qdrant) Len() int {
	if q == nil {
		return 0
	}
	return q.count
}

// Rebuild recreates the collection wholesale and upserts every entry. The
// previous collection contents are dropped first: remote rebuilds follow the
// same all-or-nothing model as the artifact.
func (q *Qdrant) Rebuild(ctx context.Context, entries []Entry, dimension int) error {
	if len(entries) == 0 {
		return fmt.Errorf("no entries to index")
	}

	exists, err := q.collectionExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		if _, err := q.collections.Delete(ctx, &qdrant.DeleteCollection{
			CollectionName: q.collection,
		}); err != nil {
			return fmt.Errorf("deleting collection %q: %w", q.collection, err)
		}
		q.logger.Info("dropped stale collection", zap.String("collection", q.collection))
	}

	if _, err := q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Euclid,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("creating collection %q: %w", q.collection, err)
	}

	points := make([]*qdrant.PointStruct, 0, upsertBatchSize)
	for i, entry := range entries {
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Num{Num: uint64(i + 1)},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: entry.Vector},
				},
			},
			Payload: documentPayload(entry.Document),
		})

		if len(points) == upsertBatchSize || i == len(entries)-1 {
			if _, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: q.collection,
				Points:         points,
			}); err != nil {
				return fmt.Errorf("upserting points into %q: %w", q.collection, err)
			}
			points = make([]*qdrant.PointStruct, 0, upsertBatchSize)
		}
	}

	q.dimension = dimension
	q.count = len(entries)

	q.logger.Info("rebuilt collection",
		zap.String("collection", q.collection),
		zap.Int("points", len(entries)),
		zap.Int("dimension", dimension),
	)

	return nil
}

// Verify checks that the collection exists and matches the artifact the
// process was started with. Any divergence is ErrUnavailable.
func (q *Qdrant) Verify(ctx context.Context, dimension, count int) error {
	info, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collection,
	})
	if err != nil {
		return fmt.Errorf("%w: collection %q is not reachable: %v", ErrUnavailable, q.collection, err)
	}

	result := info.GetResult()
	if result == nil {
		return fmt.Errorf("%w: collection %q does not exist, run the index command first", ErrUnavailable, q.collection)
	}

	if got := result.GetPointsCount(); got != uint64(count) {
		return fmt.Errorf("%w: collection %q holds %d points, artifact has %d, rebuild the index", ErrUnavailable, q.collection, got, count)
	}

	if size := result.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); size != 0 && size != uint64(dimension) {
		return fmt.Errorf("%w: collection %q vector size %d, artifact dimension %d", ErrUnavailable, q.collection, size, dimension)
	}

	q.dimension = dimension
	q.count = count

	return nil
}

// Search queries the collection and maps hits back to knowledge documents
// through the point payload. Qdrant orders by distance already; the id
// tie-break is reapplied locally so equal scores stay deterministic.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if q == nil || q.count == 0 || k <= 0 {
		return nil, nil
	}

	if q.dimension > 0 && len(vector) != q.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), q.dimension)
	}

	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Include{
				Include: &qdrant.PayloadIncludeSelector{
					Fields: []string{"id", "category", "message", "exemplar", "patterns", "reference"},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", q.collection, err)
	}

	matches := make([]Match, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		matches = append(matches, Match{
			Document: documentFromPayload(point.GetPayload()),
			Score:    float64(point.GetScore()),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score < matches[j].Score
		}
		return matches[i].Document.ID < matches[j].Document.ID
	})

	return matches, nil
}

func (q *Qdrant) collectionExists(ctx context.Context) (bool, error) {
	resp, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("listing collections: %w", err)
	}

	for _, collection := range resp.GetCollections() {
		if collection.GetName() == q.collection {
			return true, nil
		}
	}

	return false, nil
}

func documentPayload(doc knowledge.Document) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"id":       stringValue(doc.ID),
		"category": stringValue(string(doc.Category)),
		"message":  stringValue(doc.Message),
		"exemplar": stringValue(doc.Exemplar),
	}

	if doc.Reference != "" {
		payload["reference"] = stringValue(doc.Reference)
	}

	if len(doc.Patterns) > 0 {
		values := make([]*qdrant.Value, 0, len(doc.Patterns))
		for _, pattern := range doc.Patterns {
			values = append(values, stringValue(pattern))
		}
		payload["patterns"] = &qdrant.Value{
			Kind: &qdrant.Value_ListValue{
				ListValue: &qdrant.ListValue{Values: values},
			},
		}
	}

	return payload
}

func documentFromPayload(payload map[string]*qdrant.Value) knowledge.Document {
	doc := knowledge.Document{
		ID:        payload["id"].GetStringValue(),
		Category:  knowledge.Category(payload["category"].GetStringValue()),
		Message:   payload["message"].GetStringValue(),
		Exemplar:  payload["exemplar"].GetStringValue(),
		Reference: payload["reference"].GetStringValue(),
	}

	for _, value := range payload["patterns"].GetListValue().GetValues() {
		if pattern := value.GetStringValue(); pattern != "" {
			doc.Patterns = append(doc.Patterns, pattern)
		}
	}

	return doc
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}
