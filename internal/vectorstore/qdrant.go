package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Client implements VectorStoreClient against a real Qdrant instance.
type Client struct {
	client *qdrant.Client
}

// NewClient creates a new Qdrant-backed VectorStoreClient.
// addr is in "host:port" form, e.g. "localhost:6334".
func NewClient(ctx context.Context, addr string) (*Client, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant address: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{client: client}, nil
}

// Close closes the underlying Qdrant connection.
func (c *Client) Close() error { return c.client.Close() }

// CreateCollection creates a dense+sparse named-vector collection. Idempotent:
// an existing collection with the same name is treated as success.
func (c *Client) CreateCollection(ctx context.Context, name string, denseDim int) error {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(denseDim),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection deletes a collection by name.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := c.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return nil
}

// CollectionExists checks for a collection's presence.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// CreateAlias maps a human brain_name to a physical collection (brain_id).
func (c *Client) CreateAlias(ctx context.Context, collection, alias string) error {
	_, updErr := c.client.GetCollectionsClient().UpdateAliases(ctx, &qdrant.ChangeAliases{
		Actions: []*qdrant.AliasOperations{
			{
				Action: &qdrant.AliasOperations_CreateAlias{
					CreateAlias: &qdrant.CreateAlias{
						CollectionName: collection,
						AliasName:      alias,
					},
				},
			},
		},
	})
	if updErr != nil {
		return fmt.Errorf("failed to create alias %s -> %s: %w", alias, collection, updErr)
	}
	return nil
}

// ListAliases enumerates every alias -> collection mapping.
func (c *Client) ListAliases(ctx context.Context) (map[string]string, error) {
	resp, err := c.client.GetCollectionsClient().ListAliases(ctx, &qdrant.ListAliasesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}

	out := make(map[string]string, len(resp.GetAliases()))
	for _, a := range resp.GetAliases() {
		out[a.GetAliasName()] = a.GetCollectionName()
	}
	return out, nil
}

// Upsert writes points with both dense and sparse named vectors.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	pbPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := map[string]*qdrant.Value{
			"content":           qdrant.NewValueString(p.Content),
			"metadata.pdf_id":   qdrant.NewValueString(p.Metadata.PDFID.String()),
			"metadata.file_name": qdrant.NewValueString(p.Metadata.FileName),
			"metadata.brain_id": qdrant.NewValueString(p.Metadata.BrainID.String()),
			"metadata.page_no":  qdrant.NewValueInt(int64(p.Metadata.PageNo)),
		}

		pbPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID.String()),
			Payload: payload,
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vectors{
					Vectors: &qdrant.NamedVectors{
						Vectors: map[string]*qdrant.Vector{
							denseVectorName: {Data: p.Dense},
							sparseVectorName: {
								Indices: &qdrant.SparseIndices{Data: p.Sparse.Indices},
								Data:    p.Sparse.Values,
							},
						},
					},
				},
			},
		}
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         pbPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points into %s: %w", collection, err)
	}
	return nil
}

// QueryPoints runs a Dense, Sparse, or RRF-Fusion query against collection.
func (c *Client) QueryPoints(ctx context.Context, collection string, spec QuerySpec, filter *Filter, limit int) ([]ScoredDoc, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         toQdrantFilter(filter),
	}

	switch {
	case spec.Fusion != nil:
		req.Prefetch = []*qdrant.PrefetchQuery{
			{
				Query: qdrant.NewQueryDense(spec.Fusion.DensePrefetch),
				Using: qdrant.PtrOf(denseVectorName),
				Limit: qdrant.PtrOf(uint64(spec.Fusion.PrefetchLimit)),
			},
			{
				Query: qdrant.NewQuerySparse(spec.Fusion.SparsePrefetch.Indices, spec.Fusion.SparsePrefetch.Values),
				Using: qdrant.PtrOf(sparseVectorName),
				Limit: qdrant.PtrOf(uint64(spec.Fusion.PrefetchLimit)),
			},
		}
		req.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
	case spec.Sparse != nil:
		req.Query = qdrant.NewQuerySparse(spec.Sparse.Indices, spec.Sparse.Values)
		req.Using = qdrant.PtrOf(sparseVectorName)
	default:
		req.Query = qdrant.NewQueryDense(spec.Dense)
		req.Using = qdrant.PtrOf(denseVectorName)
	}

	resp, err := c.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	out := make([]ScoredDoc, 0, len(resp))
	for _, pt := range resp {
		out = append(out, ScoredDoc{
			Point: pointFromPayload(pt.GetId().GetUuid(), pt.GetPayload()),
			Score: pt.GetScore(),
		})
	}
	return out, nil
}

// Scroll pages through payloads (no vectors) matching filter.
func (c *Client) Scroll(ctx context.Context, collection string, filter *Filter, limit int) ([]Point, error) {
	resp, err := c.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(filter),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll %s: %w", collection, err)
	}

	out := make([]Point, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		out = append(out, pointFromPayload(pt.GetId().GetUuid(), pt.GetPayload()))
	}
	return out, nil
}

// Count returns the number of points matching filter, for registry pagination.
func (c *Client) Count(ctx context.Context, collection string, filter *Filter) (int, error) {
	resp, err := c.client.GetPointsClient().Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(filter),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	conds := make([]*qdrant.Condition, 0, len(f.Must))
	for _, m := range f.Must {
		if len(m.Values) > 0 {
			conds = append(conds, qdrant.NewMatchKeywords(m.Key, m.Values...))
			continue
		}
		conds = append(conds, qdrant.NewMatch(m.Key, m.Value))
	}
	return &qdrant.Filter{Must: conds}
}

func pointFromPayload(id string, payload map[string]*qdrant.Value) Point {
	p := Point{}
	if parsed, err := uuid.Parse(id); err == nil {
		p.ID = parsed
	}
	if payload == nil {
		return p
	}
	if v, ok := payload["content"]; ok {
		p.Content = v.GetStringValue()
	}
	if v, ok := payload["metadata.pdf_id"]; ok {
		if parsed, err := uuid.Parse(v.GetStringValue()); err == nil {
			p.Metadata.PDFID = parsed
		}
	}
	if v, ok := payload["metadata.file_name"]; ok {
		p.Metadata.FileName = v.GetStringValue()
	}
	if v, ok := payload["metadata.brain_id"]; ok {
		if parsed, err := uuid.Parse(v.GetStringValue()); err == nil {
			p.Metadata.BrainID = parsed
		}
	}
	if v, ok := payload["metadata.page_no"]; ok {
		p.Metadata.PageNo = int(v.GetIntegerValue())
	}
	return p
}

var _ VectorStoreClient = (*Client)(nil)
