// Package qdrant provides a VectorDB implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// Payload keys.
const (
	keyEntityID   = "entity_id"
	keyCampaignID = "campaign_id"
	keyEntityName = "entity_name"
	keyEntityType = "entity_type"
	keyRestricted = "restricted"
	keyText       = "text"
	keyIndex      = "chunk_index"
	keyHeaderPath = "header_path"
	keyMentions   = "mentions"
	keyCreatedAt  = "created_at"
)

// Repository implements the VectorDB interface using Qdrant.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// apiKeyInterceptor attaches the api-key header Qdrant Cloud expects.
func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection and its payload indexes if it
// doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	indexes := map[string]pb.FieldType{
		keyCampaignID: pb.FieldType_FieldTypeKeyword,
		keyEntityID:   pb.FieldType_FieldTypeKeyword,
		keyRestricted: pb.FieldType_FieldTypeBool,
		keyText:       pb.FieldType_FieldTypeText,
	}
	for field, fieldType := range indexes {
		_, err := r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: r.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
			Wait:           pb.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("creating %s index: %w", field, err)
		}
	}

	return nil
}

// DeleteCollection removes the collection and all its data.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// SaveChunk stores one chunk with its embedding.
func (r *Repository) SaveChunk(ctx context.Context, chunk entities.Chunk) error {
	pointID := chunk.ID
	if pointID == "" {
		pointID = uuid.New().String()
	}
	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	point := &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{
				Uuid: pointID,
			},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{
					Data: chunk.Embedding,
				},
			},
		},
		Payload: map[string]*pb.Value{
			keyEntityID:   stringValue(chunk.EntityID),
			keyCampaignID: stringValue(chunk.CampaignID),
			keyEntityName: stringValue(chunk.EntityName),
			keyEntityType: stringValue(chunk.EntityType),
			keyRestricted: {Kind: &pb.Value_BoolValue{BoolValue: chunk.Restricted}},
			keyText:       stringValue(chunk.Text),
			keyIndex:      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(chunk.Index)}},
			keyHeaderPath: listValue(chunk.HeaderPath),
			keyMentions:   listValue(chunk.Mentions),
			keyCreatedAt:  stringValue(createdAt.Format(time.RFC3339)),
		},
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// DeleteChunksByEntity removes all chunks of an entity.
func (r *Repository) DeleteChunksByEntity(ctx context.Context, entityID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           pb.PtrOf(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{keywordCondition(keyEntityID, entityID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points by entity: %w", err)
	}

	return nil
}

// CountChunksByEntity returns how many chunks an entity has.
func (r *Repository) CountChunksByEntity(ctx context.Context, entityID string) (int, error) {
	resp, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Filter: &pb.Filter{
			Must: []*pb.Condition{keywordCondition(keyEntityID, entityID)},
		},
		Exact: pb.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}

	return int(resp.GetResult().GetCount()), nil
}

// SearchSimilar performs a cosine search scoped to one campaign.
func (r *Repository) SearchSimilar(ctx context.Context, q ports.SimilarityQuery) ([]entities.ChunkHit, error) {
	threshold := float32(q.Threshold)
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         q.Vector,
		Limit:          uint64(q.Limit),
		ScoreThreshold: &threshold,
		Filter:         campaignFilter(q.CampaignID, q.ExcludeRestricted),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	hits := make([]entities.ChunkHit, 0, len(resp.Result))
	for _, point := range resp.Result {
		hits = append(hits, entities.ChunkHit{
			Chunk: payloadToChunk(point.Id.GetUuid(), point.Payload),
			Score: float64(point.Score),
		})
	}
	return hits, nil
}

// SearchKeyword scrolls chunks whose text matches any term. Requires the
// full-text index created by EnsureCollection.
func (r *Repository) SearchKeyword(ctx context.Context, q ports.KeywordQuery) ([]entities.ChunkHit, error) {
	if len(q.Terms) == 0 {
		return []entities.ChunkHit{}, nil
	}

	filter := campaignFilter(q.CampaignID, q.ExcludeRestricted)
	for _, term := range q.Terms {
		filter.Should = append(filter.Should, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: keyText,
					Match: &pb.Match{
						MatchValue: &pb.Match_Text{Text: term},
					},
				},
			},
		})
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	resp, err := r.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: r.collection,
		Limit:          pb.PtrOf(uint32(limit)),
		Filter:         filter,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scrolling points by keyword: %w", err)
	}

	hits := make([]entities.ChunkHit, 0, len(resp.Result))
	for _, point := range resp.Result {
		hits = append(hits, entities.ChunkHit{Chunk: payloadToChunk(point.Id.GetUuid(), point.Payload)})
	}
	return hits, nil
}

// campaignFilter restricts to one campaign and optionally hides restricted
// entities' chunks.
func campaignFilter(campaignID string, excludeRestricted bool) *pb.Filter {
	filter := &pb.Filter{
		Must: []*pb.Condition{keywordCondition(keyCampaignID, campaignID)},
	}
	if excludeRestricted {
		filter.MustNot = []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: keyRestricted,
					Match: &pb.Match{
						MatchValue: &pb.Match_Boolean{Boolean: true},
					},
				},
			},
		}}
	}
	return filter
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{
						Keyword: value,
					},
				},
			},
		},
	}
}

// payloadToChunk converts a point payload back into a chunk.
func payloadToChunk(id string, payload map[string]*pb.Value) entities.Chunk {
	chunk := entities.Chunk{
		ID:         id,
		EntityID:   getStringValue(payload, keyEntityID),
		CampaignID: getStringValue(payload, keyCampaignID),
		EntityName: getStringValue(payload, keyEntityName),
		EntityType: getStringValue(payload, keyEntityType),
		Restricted: getBoolValue(payload, keyRestricted),
		Text:       getStringValue(payload, keyText),
		Index:      int(getIntValue(payload, keyIndex)),
		HeaderPath: getStringList(payload, keyHeaderPath),
		Mentions:   getStringList(payload, keyMentions),
	}
	if t, err := time.Parse(time.RFC3339, getStringValue(payload, keyCreatedAt)); err == nil {
		chunk.CreatedAt = t
	}
	return chunk
}

// Helper functions for payload construction and extraction.
func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func listValue(values []string) *pb.Value {
	items := make([]*pb.Value, len(values))
	for i, v := range values {
		items[i] = stringValue(v)
	}
	return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: items}}}
}

func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func getBoolValue(payload map[string]*pb.Value, key string) bool {
	if v, ok := payload[key]; ok {
		return v.GetBoolValue()
	}
	return false
}

func getStringList(payload map[string]*pb.Value, key string) []string {
	v, ok := payload[key]
	if !ok {
		return []string{}
	}
	values := v.GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStringValue())
	}
	return out
}
