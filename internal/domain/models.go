package domain

import (
	"time"
)

type UploadedImage struct {
	Key          string    `json:"key"`
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type AnalyzeRequest struct {
	URI string `json:"uri"`
}

type AnalyzeResult struct {
	ModelVersion        string              `json:"modelVersion"`
	Metadata            Metadata            `json:"metadata"`
	DenseCaptionsResult *DenseCaptionResult `json:"denseCaptionsResult" validate:"required"`
}

type Metadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type DenseCaptionResult struct {
	Values []CaptionValue `json:"values" validate:"required,dive"`
}

type CaptionValue struct {
	Text        string      `json:"text" validate:"required"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Captions returns the caption texts in response order.
func (r *AnalyzeResult) Captions() []string {
	captions := make([]string, 0, len(r.DenseCaptionsResult.Values))
	for _, v := range r.DenseCaptionsResult.Values {
		captions = append(captions, v.Text)
	}
	return captions
}

type SceneResult struct {
	ImageURL string   `json:"image_url"`
	Captions []string `json:"captions"`
	Results  string   `json:"results"`
}
