package handler

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-clip-classifier/internal/domain"
	"github.com/arturoeanton/go-clip-classifier/internal/port"
	"github.com/arturoeanton/go-clip-classifier/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ClassifyHandler exposes classification, label listing and feedback.
type ClassifyHandler struct {
	classifier *service.ClassifierService
	storeState func() string
}

// NewClassifyHandler creates a new classify handler. storeState reports the
// persistent store lifecycle for /health and may be nil.
func NewClassifyHandler(classifier *service.ClassifierService, storeState func() string) *ClassifyHandler {
	if storeState == nil {
		storeState = func() string { return "disabled" }
	}
	return &ClassifyHandler{classifier: classifier, storeState: storeState}
}

// Register sets up classifier routes.
func (h *ClassifyHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/labels", h.Labels)
	router.Post("/classify", h.Classify)
	router.Post("/feedback", h.Feedback)
}

// Health reports readiness and the store state.
func (h *ClassifyHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":          true,
		"status":      "ready",
		"model":       h.classifier.ModelName(),
		"store_state": h.storeState(),
	})
}

// Labels returns the default label set and NSFW threshold.
func (h *ClassifyHandler) Labels(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":             true,
		"default_labels": h.classifier.DefaultLabels(),
		"nsfw_threshold": h.classifier.NSFWThreshold(),
	})
}

// Classify accepts a multipart upload and returns the classification.
func (h *ClassifyHandler) Classify(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return unprocessable(c, "file is required")
	}
	if fh.Filename == "" {
		return unprocessable(c, "file has no name")
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported file type: " + contentType})
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read upload"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read upload"})
	}

	req := service.ClassifyRequest{
		Image:       data,
		Theme:       c.FormValue("theme"),
		AssetID:     c.FormValue("asset_id"),
		AssetSHA256: c.FormValue("asset_sha256"),
	}

	if req.Labels, err = service.ParseLabels(c.FormValue("labels")); err != nil {
		return unprocessable(c, err.Error())
	}
	if req.NSFWThreshold, err = optionalFloat(c.FormValue("nsfw_threshold")); err != nil {
		return unprocessable(c, "nsfw_threshold must be a number")
	}
	if req.SimilarThreshold, err = optionalFloat(c.FormValue("similar_threshold")); err != nil {
		return unprocessable(c, "similar_threshold must be a number")
	}
	if req.SimilarLimit, err = optionalInt(c.FormValue("similar_limit")); err != nil {
		return unprocessable(c, "similar_limit must be an integer")
	}

	result, err := h.classifier.Classify(c.Context(), req)
	switch {
	case err == nil:
	case isValidationError(err):
		return unprocessable(c, err.Error())
	default:
		slog.Error("classification failed", "filename", fh.Filename, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "classification failed: " + err.Error()})
	}

	return c.JSON(fiber.Map{
		"ok":           true,
		"result":       result,
		"filename":     fh.Filename,
		"content_type": contentType,
	})
}

// Feedback records an accept/reject decision for an image within a theme.
func (h *ClassifyHandler) Feedback(c fiber.Ctx) error {
	var body domain.FeedbackEvent
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	err := h.classifier.RegisterFeedback(c.Context(), body)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"ok": true})
	case errors.Is(err, port.ErrInvalidFeedback):
		return unprocessable(c, err.Error())
	case errors.Is(err, port.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": port.ErrStoreUnavailable.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, port.ErrEmptyImage) ||
		errors.Is(err, port.ErrInvalidImage) ||
		errors.Is(err, port.ErrEmptyLabels) ||
		errors.Is(err, port.ErrInvalidLabels)
}

func unprocessable(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": msg})
}

func optionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
