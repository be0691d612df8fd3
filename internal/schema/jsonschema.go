package schema

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"

	"ai-course-media-service/internal/models"
)

// SlideDeck is the object a language model is asked to return.
type SlideDeck struct {
	Slides []models.SlideRecord `json:"slides" jsonschema:"required"`
}

// SlidesSchema returns the strict JSON schema of SlideDeck, suitable for a
// structured-output response format.
func SlidesSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := reflector.Reflect(&SlideDeck{})

	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	strict(m)
	return m, nil
}

// strict closes every object and marks all of its properties required.
func strict(node map[string]any) {
	if t, ok := node["type"].(string); ok && t == "object" {
		node["additionalProperties"] = false
		if props, ok := node["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			if len(required) > 0 {
				node["required"] = required
			}
		}
	}
	if props, ok := node["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				strict(pm)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		strict(items)
	}
}
