package domain

// TopLabel is one entry of the ranked label payload.
type TopLabel struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Logit     float64 `json:"logit"`
	ClipScore float64 `json:"clip_score"`
}

// Classification is the full result of classifying one image.
type Classification struct {
	Category         string             `json:"category"`
	Confidence       float64            `json:"confidence"`
	AllScores        map[string]float64 `json:"all_scores"`
	RawLogits        map[string]float64 `json:"raw_logits"`
	TopLabels        []TopLabel         `json:"top_labels"`
	Entropy          float64            `json:"entropy"`
	ConfidenceMargin float64            `json:"confidence_margin"`
	NSFWScore        float64            `json:"nsfw_score"`
	IsNSFW           bool               `json:"is_nsfw"`
	Ambiguous        bool               `json:"ambiguous"`
	AffinityWeight   float64            `json:"affinity_weight"`
	LLMExpansion     Expansion          `json:"llm_expansion"`
	SimilarImages    []SimilarImage     `json:"similar_images"`
	ImageHash        string             `json:"image_hash"`
	PerceptualHash   string             `json:"perceptual_hash,omitempty"`
	ModelName        string             `json:"model_name"`
	Labels           []string           `json:"labels"`
}
