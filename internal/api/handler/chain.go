package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/designtech/dtchain/internal/codec"
	"github.com/designtech/dtchain/internal/digest"
	"github.com/designtech/dtchain/internal/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MIMECBOR is the content type of CBOR chain documents.
const MIMECBOR = "application/cbor"

// BuildResponse is returned by GET /chains.
type BuildResponse struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
	Root  string `json:"root"`
	codec.Document
}

// VerifyResponse is returned by POST /chains/verify.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Records int    `json:"records"`
	Root    string `json:"root,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExtendRequest is the body of POST /chains/extend.
type ExtendRequest struct {
	Chain    codec.Document `json:"chain"`
	Payloads []string       `json:"payloads"`
}

// DigestResponse is returned by GET /digest.
type DigestResponse struct {
	Algorithm string `json:"algorithm"`
	Bits      int    `json:"bits"`
	Digest    string `json:"digest"`
}

// ChainHandler exposes chain construction and verification over HTTP.
type ChainHandler struct {
	builder  *ledger.Builder
	engine   *digest.Engine
	maxCount int
	logger   *zap.Logger
}

// NewChainHandler creates a ChainHandler. Requests for more than maxCount
// records are rejected.
func NewChainHandler(factory *ledger.Factory, maxCount int, logger *zap.Logger) *ChainHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainHandler{
		builder:  ledger.NewBuilder(factory, logger),
		engine:   factory.Engine(),
		maxCount: maxCount,
		logger:   logger,
	}
}

// Register mounts the chain routes on the given router group.
func (h *ChainHandler) Register(rg *gin.RouterGroup) {
	ch := rg.Group("/chains")
	{
		ch.GET("", h.Build)
		ch.POST("/verify", h.Verify)
		ch.POST("/extend", h.Extend)
	}
	rg.GET("/digest", h.Digest)
}

// Build handles GET /chains?count=N by building a fresh chain of N records.
func (h *ChainHandler) Build(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
	if err != nil || count < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a non-negative integer"})
		return
	}
	if count > h.maxCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count exceeds maximum of " + strconv.Itoa(h.maxCount)})
		return
	}

	chain, err := h.builder.Build(count)
	if err != nil {
		h.logger.Error("chain build failed", zap.Int("count", count), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build chain"})
		return
	}
	RecordChainBuilt(h.engine.Algorithm(), count)

	id := uuid.NewString()
	doc := codec.FromChain(h.engine.Algorithm(), chain)
	h.logger.Info("chain built",
		zap.String("build_id", id),
		zap.Int("count", count),
		zap.String("root", chain.Root().Hex()),
	)

	if wantsCBOR(c) {
		h.writeCBOR(c, id, doc)
		return
	}
	c.JSON(http.StatusOK, BuildResponse{
		ID:       id,
		Count:    chain.Len(),
		Root:     chain.Root().Hex(),
		Document: doc,
	})
}

// Verify handles POST /chains/verify. It re-hashes a submitted document and
// reports whether every link holds.
func (h *ChainHandler) Verify(c *gin.Context) {
	doc, ok := h.readDocument(c)
	if !ok {
		return
	}

	chain, engine, err := doc.Chain()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ledger.Verify(engine, chain); err != nil {
		RecordVerification(false)
		h.logger.Warn("chain verification failed",
			zap.Int("records", chain.Len()),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, VerifyResponse{Valid: false, Records: chain.Len(), Error: err.Error()})
		return
	}

	RecordVerification(true)
	c.JSON(http.StatusOK, VerifyResponse{Valid: true, Records: chain.Len(), Root: chain.Root().Hex()})
}

// Extend handles POST /chains/extend. It verifies the submitted chain and
// appends one record per payload.
func (h *ChainHandler) Extend(c *gin.Context) {
	var req ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDecode(c, err)
		return
	}
	total := len(req.Chain.Records) + len(req.Payloads)
	if len(req.Chain.Records) == 0 {
		total++ // genesis
	}
	if total > h.maxCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "extended chain would exceed maximum of " + strconv.Itoa(h.maxCount)})
		return
	}
	if req.Chain.Algorithm == "" {
		req.Chain.Algorithm = h.engine.Algorithm()
	}

	chain, engine, err := req.Chain.Chain()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if engine.Algorithm() != h.engine.Algorithm() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chain uses " + engine.Algorithm() + ", server extends " + h.engine.Algorithm()})
		return
	}
	if err := ledger.Verify(engine, chain); err != nil {
		RecordVerification(false)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	extended, err := h.builder.Extend(chain, req.Payloads...)
	if err != nil {
		if errors.Is(err, digest.ErrEncoding) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("chain extend failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to extend chain"})
		return
	}
	RecordChainBuilt(h.engine.Algorithm(), extended.Len()-chain.Len())

	c.JSON(http.StatusOK, BuildResponse{
		ID:       uuid.NewString(),
		Count:    extended.Len(),
		Root:     extended.Root().Hex(),
		Document: codec.FromChain(h.engine.Algorithm(), extended),
	})
}

// Digest handles GET /digest?data=... by digesting arbitrary text with the
// server's engine.
func (h *ChainHandler) Digest(c *gin.Context) {
	data := c.Query("data")
	if !utf8.ValidString(data) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data must be valid UTF-8"})
		return
	}
	d, err := h.engine.Sum([]byte(data))
	if err != nil {
		h.logger.Error("digest failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "digest unavailable"})
		return
	}
	c.JSON(http.StatusOK, DigestResponse{
		Algorithm: h.engine.Algorithm(),
		Bits:      h.engine.Bits(),
		Digest:    d.Hex(),
	})
}

// readDocument decodes a chain document from the request body, honouring a
// CBOR Content-Type. On failure it writes an error response and returns false.
func (h *ChainHandler) readDocument(c *gin.Context) (codec.Document, bool) {
	format := codec.FormatJSON
	if strings.HasPrefix(c.ContentType(), MIMECBOR) {
		format = codec.FormatCBOR
	}
	doc, err := codec.Decode(c.Request.Body, format)
	if err != nil {
		abortDecode(c, err)
		return codec.Document{}, false
	}
	return doc, true
}

// abortDecode answers 413 when the body limit was hit and 400 otherwise.
func abortDecode(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "request body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *ChainHandler) writeCBOR(c *gin.Context, id string, doc codec.Document) {
	out, err := codec.Marshal(codec.FormatCBOR, doc)
	if err != nil {
		h.logger.Error("encode cbor document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode chain"})
		return
	}
	c.Header("X-Build-ID", id)
	c.Data(http.StatusOK, MIMECBOR, out)
}

func wantsCBOR(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), MIMECBOR) || c.Query("format") == codec.FormatCBOR
}
