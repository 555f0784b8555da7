package model

// Metadata describes the classifier artifact. It ships next to the model
// file and carries the category labels in output order.
type Metadata struct {
	InputName     string   `json:"input_name"`
	OutputName    string   `json:"output_name"`
	InputShape    []int64  `json:"input_shape"`
	OutputShape   []int64  `json:"output_shape"`
	Classes       []string `json:"classes"`
	ClassesSHA256 string   `json:"classes_sha256,omitempty"`
	ImageSize     int      `json:"image_size"`
}

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// RawScores are the unnormalized classifier outputs (logits), one per category.
type RawScores []float32

// Probabilities is a softmax distribution over the categories.
type Probabilities []float64

// CategoryScore is a single entry of the per-category breakdown.
type CategoryScore struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	RawScore    float32 `json:"raw_score"`
}

// PredictionReport is the outcome of one inference call.
type PredictionReport struct {
	TopLabel             string          `json:"top_label"`
	TopIndex             int             `json:"top_index"`
	TopConfidencePercent float64         `json:"top_confidence_percent"`
	PerCategory          []CategoryScore `json:"per_category"`
}
