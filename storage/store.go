package storage

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"videoModerate/config"
)

// EmbeddingStore 帧嵌入缓存，避免同一帧重复走嵌入服务
type EmbeddingStore interface {
	GetFrameEmbedding(ctx context.Context, videoID string, ts float64) ([]float32, bool)
	PutFrameEmbedding(ctx context.Context, videoID string, ts float64, embedding []float32) error
	Close() error
}

// tsKey 时间戳毫秒化，作为缓存键的一部分
func tsKey(ts float64) int64 {
	return int64(math.Round(ts * 1000))
}

// NewEmbeddingStore 根据配置选择后端，初始化失败时回退到内存实现
func NewEmbeddingStore(cfg *config.Config) EmbeddingStore {
	storeKind := strings.ToLower(strings.TrimSpace(cfg.Store))
	switch storeKind {
	case "pgvector":
		s, err := newPgVectorEmbeddingStore(cfg)
		if err != nil {
			fmt.Printf("Warning: Failed to initialize PgVector store (%v), falling back to memory store\n", err)
			return newMemoryEmbeddingStore()
		}
		return s
	case "milvus":
		s, err := newMilvusEmbeddingStore(cfg)
		if err != nil {
			fmt.Printf("Warning: Failed to initialize Milvus store (%v), falling back to memory store\n", err)
			return newMemoryEmbeddingStore()
		}
		return s
	default:
		return newMemoryEmbeddingStore()
	}
}

// ---------------- Memory implementation (kept for fallback) ----------------

type MemoryEmbeddingStore struct {
	mu   sync.RWMutex
	data map[string][]float32
}

func newMemoryEmbeddingStore() *MemoryEmbeddingStore {
	return &MemoryEmbeddingStore{data: make(map[string][]float32)}
}

func (s *MemoryEmbeddingStore) key(videoID string, ts float64) string {
	return fmt.Sprintf("%s:%d", videoID, tsKey(ts))
}

func (s *MemoryEmbeddingStore) GetFrameEmbedding(_ context.Context, videoID string, ts float64) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.data[s.key(videoID, ts)]
	return vec, ok
}

func (s *MemoryEmbeddingStore) PutFrameEmbedding(_ context.Context, videoID string, ts float64, embedding []float32) error {
	s.mu.Lock()
	s.data[s.key(videoID, ts)] = embedding
	s.mu.Unlock()
	return nil
}

func (s *MemoryEmbeddingStore) Close() error { return nil }

// ---------------- PgVector implementation ----------------

type PgVectorEmbeddingStore struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

func newPgVectorEmbeddingStore(cfg *config.Config) (*PgVectorEmbeddingStore, error) {
	if strings.TrimSpace(cfg.PostgresURL) == "" {
		return nil, fmt.Errorf("postgres_url is empty")
	}
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS frame_embeddings (
			video_id TEXT NOT NULL,
			ts_ms BIGINT NOT NULL,
			embedding vector(512),
			created_at TIMESTAMPTZ DEFAULT now(),
			PRIMARY KEY (video_id, ts_ms)
		)`); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("create frame_embeddings table: %w", err)
	}
	return &PgVectorEmbeddingStore{conn: conn}, nil
}

func (s *PgVectorEmbeddingStore) GetFrameEmbedding(ctx context.Context, videoID string, ts float64) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var vec pgvector.Vector
	err := s.conn.QueryRow(ctx,
		"SELECT embedding FROM frame_embeddings WHERE video_id = $1 AND ts_ms = $2",
		videoID, tsKey(ts)).Scan(&vec)
	if err != nil {
		return nil, false
	}
	return vec.Slice(), true
}

func (s *PgVectorEmbeddingStore) PutFrameEmbedding(ctx context.Context, videoID string, ts float64, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(ctx, `
		INSERT INTO frame_embeddings (video_id, ts_ms, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (video_id, ts_ms) DO UPDATE SET embedding = EXCLUDED.embedding`,
		videoID, tsKey(ts), pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upsert frame embedding: %w", err)
	}
	return nil
}

func (s *PgVectorEmbeddingStore) Close() error {
	return s.conn.Close(context.Background())
}

// ---------------- Milvus implementation ----------------

type MilvusEmbeddingStore struct {
	mc   client.Client
	coll string
	dim  int64
}

func newMilvusEmbeddingStore(cfg *config.Config) (*MilvusEmbeddingStore, error) {
	addr := cfg.MilvusAddr
	if addr == "" {
		addr = "localhost:19530"
	}
	username := os.Getenv("MILVUS_USERNAME")
	password := os.Getenv("MILVUS_PASSWORD")
	apiKey := os.Getenv("MILVUS_API_KEY") // For Zilliz Cloud
	coll := os.Getenv("MILVUS_COLLECTION")
	if coll == "" {
		coll = "frame_embeddings"
	}

	mc, err := client.NewClient(context.Background(), client.Config{Address: addr, Username: username, Password: password, APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusEmbeddingStore{mc: mc, coll: coll, dim: 512}
	if err := s.ensureSchemaAndIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusEmbeddingStore) ensureSchemaAndIndex() error {
	ctx := context.Background()
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("ts_ms").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(s.dim))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusEmbeddingStore) GetFrameEmbedding(ctx context.Context, videoID string, ts float64) ([]float32, bool) {
	expr := fmt.Sprintf("video_id == \"%s\" && ts_ms == %d", videoID, tsKey(ts))
	rs, err := s.mc.Query(ctx, s.coll, nil, expr, []string{"vector"})
	if err != nil {
		return nil, false
	}
	for _, col := range rs {
		if vecCol, ok := col.(*entity.ColumnFloatVector); ok && vecCol.Len() > 0 {
			return vecCol.Data()[0], true
		}
	}
	return nil, false
}

func (s *MilvusEmbeddingStore) PutFrameEmbedding(ctx context.Context, videoID string, ts float64, embedding []float32) error {
	videoIDs := entity.NewColumnVarChar("video_id", []string{videoID})
	tsCol := entity.NewColumnInt64("ts_ms", []int64{tsKey(ts)})
	vecCol := entity.NewColumnFloatVector("vector", int(s.dim), [][]float32{embedding})
	if _, err := s.mc.Insert(ctx, s.coll, "", videoIDs, tsCol, vecCol); err != nil {
		return fmt.Errorf("insert frame embedding: %w", err)
	}
	return nil
}

func (s *MilvusEmbeddingStore) Close() error {
	return s.mc.Close()
}
