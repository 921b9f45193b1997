package vecstore

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"chorale/internal/logging"
)

// QdrantStore talks to a Qdrant server over gRPC. All collections use
// cosine distance; vectors are expected pre-normalized by the caller.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
}

// NewQdrantStore connects to a Qdrant gRPC endpoint (host:port).
func NewQdrantStore(addr string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrStoreUnavailable, addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it
// does not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: failed to list collections: %v", ErrStoreUnavailable, err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() == name {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	logging.Memory("created collection %s (dims=%d)", name, dims)
	return nil
}

// DropCollection deletes the collection if present.
func (s *QdrantStore) DropCollection(ctx context.Context, name string) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: failed to list collections: %v", ErrStoreUnavailable, err)
	}
	exists := false
	for _, col := range list.GetCollections() {
		if col.GetName() == name {
			exists = true
			break
		}
	}
	if !exists {
		return nil
	}
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// Upsert inserts or replaces points, waiting for the write to apply.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: toQdrantPayload(p.Payload),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// Query runs a cosine similarity search.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         toQdrantFilter(filter),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search in %s failed: %w", collection, err)
	}

	out := make([]ScoredPoint, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		out = append(out, ScoredPoint{
			ID:      pointIDString(hit.GetId()),
			Score:   hit.GetScore(),
			Payload: fromQdrantPayload(hit.GetPayload()),
		})
	}
	return out, nil
}

// Delete removes points by ID.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %d points from %s: %w", len(ids), collection, err)
	}
	return nil
}

// Scroll returns points matching the filter without ranking.
func (s *QdrantStore) Scroll(ctx context.Context, collection string, filter *Filter, limit int) ([]Point, error) {
	lim := uint32(limit)
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(filter),
		Limit:          &lim,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scroll in %s failed: %w", collection, err)
	}

	out := make([]Point, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		out = append(out, Point{
			ID:      pointIDString(p.GetId()),
			Payload: fromQdrantPayload(p.GetPayload()),
		})
	}
	return out, nil
}

// Count returns the exact point count.
func (s *QdrantStore) Count(ctx context.Context, collection string) (uint64, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("count in %s failed: %w", collection, err)
	}
	return resp.GetResult().GetCount(), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// ============================================================================
// Proto conversion
// ============================================================================

func toQdrantFilter(f *Filter) *pb.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	must := make([]*pb.Condition, 0, len(f.Must))
	for _, c := range f.Must {
		field := &pb.FieldCondition{Key: c.Key}
		if c.Range != nil {
			field.Range = &pb.Range{Gte: c.Range.GTE, Lt: c.Range.LT}
		} else {
			field.Match = &pb.Match{
				MatchValue: &pb.Match_Keyword{Keyword: c.MatchValue},
			}
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{Field: field},
		})
	}
	return &pb.Filter{Must: must}
}

func toQdrantPayload(payload map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload))
	for k, v := range payload {
		out[k] = toQdrantValue(v)
	}
	return out
}

func toQdrantValue(v any) *pb.Value {
	switch val := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
	case []string:
		items := make([]*pb.Value, len(val))
		for i, s := range val {
			items[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: items}}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func fromQdrantPayload(payload map[string]*pb.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromQdrantValue(v)
	}
	return out
}

func fromQdrantValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_ListValue:
		items := make([]string, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			if s, ok := item.GetKind().(*pb.Value_StringValue); ok {
				items = append(items, s.StringValue)
			}
		}
		return items
	default:
		return nil
	}
}

func pointIDString(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	switch opt := id.GetPointIdOptions().(type) {
	case *pb.PointId_Uuid:
		return opt.Uuid
	case *pb.PointId_Num:
		return fmt.Sprintf("%d", opt.Num)
	default:
		return ""
	}
}
