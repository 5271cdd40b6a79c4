package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TubeSage/internal/config"
	"TubeSage/internal/initial"
	"TubeSage/internal/modules/rag/application/service"
	"TubeSage/internal/modules/rag/domain/repository"
	"TubeSage/internal/modules/rag/infrastructure/chunking"
	ragEmbedding "TubeSage/internal/modules/rag/infrastructure/embedding"
	"TubeSage/internal/modules/rag/infrastructure/llm"
	"TubeSage/internal/modules/rag/infrastructure/mq"
	"TubeSage/internal/modules/rag/infrastructure/mq/kafka"
	"TubeSage/internal/modules/rag/infrastructure/pipeline"
	"TubeSage/internal/modules/rag/infrastructure/transcript"
	"TubeSage/internal/modules/rag/infrastructure/vectordb"
	ragHandler "TubeSage/internal/modules/rag/interface/http"
	"TubeSage/pkg/ssl"
	"TubeSage/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

var GE *gin.Engine

// Setup 组装全部依赖并注册路由。错误直接返回给 main 终止进程。
func Setup(ctx context.Context) error {
	conf := config.GetConfig()

	GE = gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))
	GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))

	chunker := newChunker(conf)
	source := transcript.NewYouTubeSource(
		conf.TranscriptConfig.BaseURL,
		conf.TranscriptConfig.Language,
		time.Duration(conf.TranscriptConfig.TimeoutSeconds)*time.Second,
	)

	embedder, meta, err := ragEmbedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	zlog.Info("embedder ready",
		zap.String("provider", meta.Provider),
		zap.String("model", meta.Model),
		zap.Int("dim", meta.Dim))

	vs, err := newVectorStore(ctx, conf, meta.Dim)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}

	router := llm.NewRouter(
		conf.AIConfig.ChatModel.LocalBaseURL,
		conf.AIConfig.ChatModel.RemoteBaseURL,
		conf.AIConfig.ChatModel.RemoteMarker,
		conf.AIConfig.ChatModel.DefaultModel,
		time.Duration(conf.AIConfig.ChatModel.TimeoutSeconds)*time.Second,
	)
	models := llm.NewChatModelProvider(conf)

	ingestPipe, err := pipeline.NewIngestPipeline(source, vs, embedder, chunker, meta.Dim)
	if err != nil {
		return fmt.Errorf("build ingest pipeline: %w", err)
	}
	queryPipe, err := pipeline.NewQueryPipeline(vs, embedder, router, models, conf.RetrievalConfig.TopK)
	if err != nil {
		return fmt.Errorf("build query pipeline: %w", err)
	}
	notesPipe, err := pipeline.NewNotesPipeline(vs, router, models, conf.RetrievalConfig.GroupBudgetChars)
	if err != nil {
		return fmt.Errorf("build notes pipeline: %w", err)
	}

	publisher := newPublisher(conf)

	ingestSvc := service.NewIngestService(ingestPipe, vs, publisher, conf.KafkaConfig.IngestTopic)
	querySvc := service.NewQueryService(ingestSvc, queryPipe)
	notesSvc := service.NewNotesService(ingestSvc, notesPipe)

	ragH := ragHandler.NewRagHandler(ingestSvc, querySvc, notesSvc)

	GE.POST("/rag/ingest", ragH.Ingest)
	GE.POST("/rag/query", ragH.Query)
	GE.POST("/rag/notes", ragH.Notes)

	return nil
}

func newChunker(conf *config.Config) *chunking.OverlapChunker {
	if conf.ChunkConfig.UseRecursive {
		return chunking.NewRecursiveChunker(conf.ChunkConfig.ChunkSize, conf.ChunkConfig.ChunkOverlap)
	}
	return chunking.NewOverlapChunker(conf.ChunkConfig.ChunkSize, conf.ChunkConfig.ChunkOverlap)
}

// newVectorStore milvus 未配置或建连失败时回落内存索引，进程可脱机跑通
func newVectorStore(ctx context.Context, conf *config.Config, dim int) (repository.VectorStore, error) {
	if strings.TrimSpace(conf.MilvusConfig.Address) == "" {
		zlog.Warn("milvus address not configured, using in-memory vector store")
		return vectordb.NewMemoryStore(dim), nil
	}

	cli, err := initial.InitMilvus(ctx)
	if err != nil {
		return nil, err
	}
	metricType := entity.COSINE
	if mt := strings.TrimSpace(conf.MilvusConfig.MetricType); mt != "" {
		metricType = entity.MetricType(mt)
	}
	collection := strings.TrimSpace(conf.MilvusConfig.CollectionName)
	if collection == "" {
		collection = "video_transcript_vectors"
	}
	return vectordb.NewMilvusStore(cli, collection, dim, metricType)
}

func newPublisher(conf *config.Config) mq.Publisher {
	if len(conf.KafkaConfig.Brokers) == 0 {
		return nil
	}
	publisher, err := kafka.NewSaramaPublisher(kafka.PublisherConfig{
		Brokers:  conf.KafkaConfig.Brokers,
		ClientID: conf.KafkaConfig.ClientID,
	})
	if err != nil {
		zlog.Warn("kafka publisher init failed, ingest events disabled", zap.Error(err))
		return nil
	}
	return publisher
}
