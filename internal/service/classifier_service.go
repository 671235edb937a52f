package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/metrics"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
	"github.com/arturoeanton/go-clip-classifier/internal/scoring"
	"github.com/arturoeanton/go-clip-classifier/internal/vecmath"
)

// ClassifierConfig holds the tunables of ClassifierService.
type ClassifierConfig struct {
	DefaultLabels []string
	MaxLabels     int
	TopK          int
	NSFWThreshold float64

	EnableEmbeddingCache  bool
	EnableClustering      bool
	EnableAdaptiveScoring bool

	AdaptiveAlpha    float64
	EntropyThreshold float64

	SimilarityThreshold float64
	SimilarityLimit     int
	SimilarityScanLimit int
}

// ClassifyRequest is one classification call. Nil pointers select the
// configured defaults; nil Labels selects the default label set.
type ClassifyRequest struct {
	Image            []byte
	Labels           []string
	NSFWThreshold    *float64
	Theme            string
	AssetID          string
	AssetSHA256      string
	SimilarThreshold *float64
	SimilarLimit     *int
}

// ClassifierService scores an image against a label set and assembles the
// full classification result.
type ClassifierService struct {
	cfg        ClassifierConfig
	encoder    port.VisionEncoder
	embeddings *EmbeddingService
	feedback   port.FeedbackStore
	similarity *SimilarityService
	expansion  *ExpansionService
	metrics    *metrics.Metrics
}

// NewClassifierService creates a new classifier service.
func NewClassifierService(
	cfg ClassifierConfig,
	encoder port.VisionEncoder,
	embeddings *EmbeddingService,
	feedback port.FeedbackStore,
	similarity *SimilarityService,
	expansion *ExpansionService,
	m *metrics.Metrics,
) *ClassifierService {
	if len(cfg.DefaultLabels) == 0 {
		cfg.DefaultLabels = BuiltinDefaultLabels
	}
	if cfg.MaxLabels < 5 {
		cfg.MaxLabels = 256
	}
	cfg.TopK = max(1, min(cfg.TopK, 20))
	return &ClassifierService{
		cfg:        cfg,
		encoder:    encoder,
		embeddings: embeddings,
		feedback:   feedback,
		similarity: similarity,
		expansion:  expansion,
		metrics:    m,
	}
}

// ModelName returns the encoder model identifier.
func (s *ClassifierService) ModelName() string {
	return s.encoder.ModelName()
}

// DefaultLabels returns a copy of the default label set.
func (s *ClassifierService) DefaultLabels() []string {
	return append([]string(nil), s.cfg.DefaultLabels...)
}

// NSFWThreshold returns the default NSFW threshold.
func (s *ClassifierService) NSFWThreshold() float64 {
	return s.cfg.NSFWThreshold
}

// Classify validates the request, resolves embeddings, scores every label and
// attaches similarity and enrichment side results.
func (s *ClassifierService) Classify(ctx context.Context, req ClassifyRequest) (*domain.Classification, error) {
	start := time.Now()

	// 1. Validate input
	if len(req.Image) == 0 {
		return nil, port.ErrEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrInvalidImage, err)
	}

	labels, err := NormalizeLabels(req.Labels, s.cfg.DefaultLabels, s.cfg.MaxLabels)
	if err != nil {
		return nil, err
	}

	imageHash := resolveImageHash(req.AssetSHA256, req.Image)
	theme := NormalizeTheme(req.Theme)
	nsfwLabel := PickNSFWLabel(labels)
	nsfwThreshold := s.cfg.NSFWThreshold
	if req.NSFWThreshold != nil {
		nsfwThreshold = *req.NSFWThreshold
	}

	// 2. Resolve embeddings
	imageVec, err := s.embeddings.ImageEmbedding(ctx, req.Image, imageHash, strings.TrimSpace(req.AssetID))
	if err != nil {
		return nil, err
	}
	labelVecs, err := s.embeddings.LabelEmbeddings(ctx, labels, len(imageVec))
	if err != nil {
		return nil, err
	}

	textRows := make([][]float32, len(labels))
	for i, label := range labels {
		textRows[i] = labelVecs[label]
	}

	// 3. Score
	sims, err := vecmath.CosineSimilarityMatrix([][]float32{imageVec}, textRows)
	if err != nil {
		return nil, fmt.Errorf("score labels: %w", err)
	}

	scale := s.encoder.LogitScale()
	logitValues := make([]float64, len(labels))
	for i, sim := range sims[0] {
		logitValues[i] = sim * scale
	}
	probs := vecmath.Softmax(logitValues)

	logits := make(map[string]float64, len(labels))
	base := make(map[string]float64, len(labels))
	for i, label := range labels {
		logits[label] = logitValues[i]
		base[label] = probs[i]
	}

	affinity := 0.0
	effective := base
	if s.cfg.EnableAdaptiveScoring && s.feedback != nil && imageHash != "" && theme != "" {
		affinity = s.feedback.AffinityWeight(ctx, imageHash, theme)
		effective = scoring.Apply(base, affinity, s.cfg.AdaptiveAlpha)
	}

	// 4. Rank
	ordered := append([]string(nil), labels...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if effective[a] != effective[b] {
			return effective[a] > effective[b]
		}
		if logits[a] != logits[b] {
			return logits[a] > logits[b]
		}
		return a < b
	})

	topK := min(s.cfg.TopK, len(ordered))
	topLabels := make([]domain.TopLabel, 0, topK)
	for _, label := range ordered[:topK] {
		topLabels = append(topLabels, domain.TopLabel{
			Label:     label,
			Score:     round6(effective[label]),
			Logit:     round6(logits[label]),
			ClipScore: round6(base[label]),
		})
	}

	effectiveValues := make([]float64, len(labels))
	for i, label := range labels {
		effectiveValues[i] = effective[label]
	}
	entropy := vecmath.Entropy(effectiveValues)
	margin := scoring.ConfidenceMargin(scoring.TopK(effective, topK))

	nsfwScore := 0.0
	if nsfwLabel != "" {
		nsfwScore = effective[nsfwLabel]
	}

	// 5. Side results
	expansionLabels := make([]string, 0, MaxExpansionLabels)
	for _, tl := range topLabels[:min(MaxExpansionLabels, len(topLabels))] {
		expansionLabels = append(expansionLabels, tl.Label)
	}

	similar := []domain.SimilarImage{}
	expansion := domain.EmptyExpansion()

	var g errgroup.Group
	if s.cfg.EnableClustering && s.cfg.EnableEmbeddingCache && s.similarity != nil && len(imageVec) > 0 {
		g.Go(func() error {
			similar = s.similarity.FindSimilar(ctx, s.similarityQuery(req, imageVec, imageHash))
			return nil
		})
	}
	if s.expansion != nil {
		g.Go(func() error {
			expansion = s.expansion.Expand(ctx, expansionLabels)
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.Classification{
		Category:         ordered[0],
		Confidence:       round6(effective[ordered[0]]),
		AllScores:        roundMap(effective),
		RawLogits:        roundMap(logits),
		TopLabels:        topLabels,
		Entropy:          round6(entropy),
		ConfidenceMargin: round6(margin),
		NSFWScore:        round6(nsfwScore),
		IsNSFW:           nsfwScore >= nsfwThreshold,
		Ambiguous:        entropy > s.cfg.EntropyThreshold,
		AffinityWeight:   round6(affinity),
		LLMExpansion:     expansion,
		SimilarImages:    similar,
		ImageHash:        imageHash,
		PerceptualHash:   perceptualHash(img),
		ModelName:        s.encoder.ModelName(),
		Labels:           labels,
	}

	s.metrics.ObserveClassification(start)
	slog.Debug("image classified",
		"image_hash", imageHash,
		"category", result.Category,
		"confidence", result.Confidence,
		"similar", len(similar),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// RegisterFeedback records one accept/reject decision for an image in a theme.
func (s *ClassifierService) RegisterFeedback(ctx context.Context, event domain.FeedbackEvent) error {
	event.ImageHash = strings.ToLower(strings.TrimSpace(event.ImageHash))
	event.Theme = NormalizeTheme(event.Theme)
	event.AssetID = strings.TrimSpace(event.AssetID)
	if event.ImageHash == "" || event.Theme == "" {
		return port.ErrInvalidFeedback
	}
	if s.feedback == nil {
		return port.ErrStoreUnavailable
	}

	if err := s.feedback.RecordFeedback(ctx, event); err != nil {
		return err
	}
	slog.Info("feedback recorded", "image_hash", event.ImageHash, "theme", event.Theme, "accepted", event.Accepted)
	return nil
}

func (s *ClassifierService) similarityQuery(req ClassifyRequest, vec []float32, imageHash string) SimilarityQuery {
	q := SimilarityQuery{
		Vector:      vec,
		ModelName:   s.encoder.ModelName(),
		Threshold:   s.cfg.SimilarityThreshold,
		Limit:       s.cfg.SimilarityLimit,
		ScanLimit:   s.cfg.SimilarityScanLimit,
		ExcludeHash: imageHash,
	}
	if req.SimilarThreshold != nil {
		q.Threshold = *req.SimilarThreshold
	}
	if req.SimilarLimit != nil {
		q.Limit = max(1, *req.SimilarLimit)
	}
	return q
}

// resolveImageHash prefers a caller-supplied SHA-256 hex digest and falls back
// to hashing the bytes.
func resolveImageHash(assetSHA256 string, data []byte) string {
	if h := strings.ToLower(strings.TrimSpace(assetSHA256)); isSHA256Hex(h) {
		return h
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// perceptualHash returns the 64-bit difference hash as 16 hex characters, or
// "" when it cannot be computed.
func perceptualHash(img image.Image) string {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", h.GetHash())
}

func roundMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round6(v)
	}
	return out
}
