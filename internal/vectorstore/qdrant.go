package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultQdrantURL        = "http://localhost:6333"
	DefaultQdrantCollection = "resumes"
	defaultQdrantTimeout    = 30 * time.Second
)

// pointNamespace derives stable Qdrant point ids from chunk ids, so
// re-ingesting a resume overwrites its points.
var pointNamespace = uuid.MustParse("6f1d8a52-3c0e-4f7b-9a61-2d5e8c4b7a90")

// PointID returns the Qdrant point id for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// QdrantOptions configures Qdrant.
type QdrantOptions struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
	Client     *http.Client
}

// Qdrant talks to the Qdrant REST API. The collection uses cosine distance
// and a keyword index on resume_id.
type Qdrant struct {
	endpoint   string
	apiKey     string
	collection string
	dims       int
	httpClient *http.Client
}

// NewQdrant connects and creates the collection when it does not exist.
func NewQdrant(ctx context.Context, opts QdrantOptions) (*Qdrant, error) {
	if opts.URL == "" {
		opts.URL = DefaultQdrantURL
	}
	if opts.Collection == "" {
		opts.Collection = DefaultQdrantCollection
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultQdrantTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	q := &Qdrant{
		endpoint:   strings.TrimRight(opts.URL, "/"),
		apiKey:     opts.APIKey,
		collection: opts.Collection,
		dims:       opts.Dimensions,
		httpClient: client,
	}
	if err := q.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %q: %w", q.collection, err)
	}
	return q, nil
}

type qdrantCollectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	var info qdrantCollectionInfo
	status, err := q.do(ctx, http.MethodGet, q.path(""), nil, &info)
	if err == nil {
		existing := info.Config.Params.Vectors
		if q.dims > 0 && existing.Size != 0 && existing.Size != q.dims {
			return fmt.Errorf("%w: collection has %d, embedder has %d", ErrDimensionMismatch, existing.Size, q.dims)
		}
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}

	logger.Ctx(ctx).Info().Str("collection", q.collection).Int("dims", q.dims).Msg("creating qdrant collection")
	create := map[string]any{
		"vectors": map[string]any{"size": q.dims, "distance": "Cosine"},
	}
	if _, err := q.do(ctx, http.MethodPut, q.path(""), create, nil); err != nil {
		return err
	}
	index := map[string]any{"field_name": "resume_id", "field_schema": "keyword"}
	_, err = q.do(ctx, http.MethodPut, q.path("/index?wait=true"), index, nil)
	return err
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes records as points keyed by PointID.
func (q *Qdrant) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]qdrantPoint, 0, len(records))
	for _, r := range records {
		if err := checkDims(r.Vector, q.dims); err != nil {
			return err
		}
		points = append(points, qdrantPoint{
			ID:      PointID(r.Chunk.ID),
			Vector:  r.Vector,
			Payload: chunkPayload(r.Chunk),
		})
	}
	_, err := q.do(ctx, http.MethodPut, q.path("/points?wait=true"), map[string]any{"points": points}, nil)
	return err
}

type qdrantHit struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Query searches the points of resumeID. Qdrant reports cosine similarity,
// so distance is 1 - score.
func (q *Qdrant) Query(ctx context.Context, vector []float32, k int, resumeID string) ([]Neighbor, error) {
	if err := checkDims(vector, q.dims); err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"filter":       resumeFilter(resumeID),
	}
	var hits []qdrantHit
	if _, err := q.do(ctx, http.MethodPost, q.path("/points/search"), req, &hits); err != nil {
		return nil, err
	}

	out := make([]Neighbor, 0, len(hits))
	for _, h := range hits {
		out = append(out, Neighbor{Chunk: payloadChunk(h.Payload), Distance: 1 - h.Score})
	}
	return out, nil
}

// Count returns the exact number of points for resumeID.
func (q *Qdrant) Count(ctx context.Context, resumeID string) (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	req := map[string]any{"filter": resumeFilter(resumeID), "exact": true}
	if _, err := q.do(ctx, http.MethodPost, q.path("/points/count"), req, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// DeleteResume removes all points of resumeID.
func (q *Qdrant) DeleteResume(ctx context.Context, resumeID string) error {
	_, err := q.do(ctx, http.MethodPost, q.path("/points/delete?wait=true"), map[string]any{"filter": resumeFilter(resumeID)}, nil)
	return err
}

// Close releases idle connections.
func (q *Qdrant) Close() error {
	q.httpClient.CloseIdleConnections()
	return nil
}

func (q *Qdrant) path(suffix string) string {
	return "/collections/" + q.collection + suffix
}

func resumeFilter(resumeID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "resume_id", "match": map[string]any{"value": resumeID}},
		},
	}
}

func chunkPayload(c types.ResumeChunk) map[string]any {
	p := map[string]any{
		"chunk_id":         c.ID,
		"resume_id":        c.ResumeID,
		"chunk_type":       string(c.Type),
		"text":             c.Text,
		"roles":            c.Roles,
		"experience_level": c.ExperienceLevel,
	}
	if c.Index != nil {
		p["index"] = *c.Index
	}
	return p
}

func payloadChunk(p map[string]any) types.ResumeChunk {
	str := func(k string) string {
		s, _ := p[k].(string)
		return s
	}
	c := types.ResumeChunk{
		ID:              str("chunk_id"),
		ResumeID:        str("resume_id"),
		Type:            types.ChunkType(str("chunk_type")),
		Text:            str("text"),
		Roles:           str("roles"),
		ExperienceLevel: str("experience_level"),
	}
	// JSON numbers decode as float64.
	if f, ok := p["index"].(float64); ok {
		i := int(f)
		c.Index = &i
	}
	return c
}

// do sends one request and decodes the "result" field into out. It returns
// the HTTP status so callers can tell a missing collection from a failure.
func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) (int, error) {
	ctx, span := tracing.Tracer("vectorstore").Start(ctx, "qdrant "+method,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.endpoint+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("qdrant %s %s: %w", method, path, err)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read qdrant response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("qdrant %s %s returned %d: %s", method, path, resp.StatusCode, tracing.Truncate(string(data), 300))
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return resp.StatusCode, err
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode qdrant response: %w", err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode qdrant result: %w", err)
	}
	return resp.StatusCode, nil
}
