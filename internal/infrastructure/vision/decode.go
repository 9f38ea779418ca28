package vision

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/whaakman/scene-description-web-example/internal/domain"
)

var ErrUnexpectedShape = errors.New("unexpected analysis response shape")

var validate = validator.New(validator.WithRequiredStructEnabled())

func DecodeAnalyzeResult(data []byte) (*domain.AnalyzeResult, error) {
	var result domain.AnalyzeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedShape, err)
	}
	if err := validate.Struct(&result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedShape, err)
	}
	return &result, nil
}
