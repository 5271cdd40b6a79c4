package http

import (
	"TubeSage/internal/modules/rag/application/dto/request"
	"TubeSage/internal/modules/rag/application/service"
	"TubeSage/pkg/back"
	"TubeSage/pkg/xerr"
	"TubeSage/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RagHandler 视频 RAG HTTP Handler
type RagHandler struct {
	ingestSvc service.IngestService
	querySvc  service.QueryService
	notesSvc  service.NotesService
}

// NewRagHandler 创建 RagHandler
func NewRagHandler(ingestSvc service.IngestService, querySvc service.QueryService, notesSvc service.NotesService) *RagHandler {
	return &RagHandler{
		ingestSvc: ingestSvc,
		querySvc:  querySvc,
		notesSvc:  notesSvc,
	}
}

// Ingest 预摄取一个视频的字幕索引
func (h *RagHandler) Ingest(c *gin.Context) {
	var req request.IngestRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("bad ingest request", zap.Error(err))
		back.Error(c, xerr.ErrParam.Code, string(xerr.KindBadRequest), xerr.ErrParam.Message)
		return
	}

	data, err := h.ingestSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		zlog.Warn("ingest failed",
			zap.String("video_id", req.VideoID),
			zap.Error(err))
	}
	back.Result(c, data, err)
}

// Query 对视频提问
func (h *RagHandler) Query(c *gin.Context) {
	var req request.QueryRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("bad query request", zap.Error(err))
		back.Error(c, xerr.ErrParam.Code, string(xerr.KindBadRequest), xerr.ErrParam.Message)
		return
	}

	data, err := h.querySvc.Ask(c.Request.Context(), req)
	if err != nil {
		zlog.Warn("query failed",
			zap.String("video_id", req.VideoID),
			zap.Error(err))
	}
	back.Result(c, data, err)
}

// Notes 按主题合成整视频笔记
func (h *RagHandler) Notes(c *gin.Context) {
	var req request.NotesRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error("bad notes request", zap.Error(err))
		back.Error(c, xerr.ErrParam.Code, string(xerr.KindBadRequest), xerr.ErrParam.Message)
		return
	}

	data, err := h.notesSvc.Synthesize(c.Request.Context(), req)
	if err != nil {
		zlog.Warn("notes synthesis failed",
			zap.String("video_id", req.VideoID),
			zap.Error(err))
	}
	back.Result(c, data, err)
}
