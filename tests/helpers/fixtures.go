package helpers

import (
	"encoding/json"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

// TestUser represents a test user fixture
type TestUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Default test fixtures
var DefaultTestUser = TestUser{
	Email:    "designer@example.com",
	Password: "test-password-123",
}

// CreateDesignTree builds a small parsed design-document tree: a root
// canvas holding a named hero group with two child layers.
func CreateDesignTree() *models.LayerNode {
	return &models.LayerNode{
		ID:      "root",
		Name:    "Canvas",
		Bounds:  models.BoundingBox{X: 0, Y: 0, W: 1920, H: 1080},
		Visible: true,
		Opacity: 1,
		Children: []*models.LayerNode{
			{
				ID:      "grp-hero",
				Name:    "Hero Banner",
				Bounds:  models.BoundingBox{X: 100, Y: 50, W: 800, H: 400},
				Visible: true,
				Opacity: 1,
				Children: []*models.LayerNode{
					{
						ID:      "lyr-headline",
						Name:    "Headline",
						Bounds:  models.BoundingBox{X: 120, Y: 80, W: 500, H: 100},
						Visible: true,
						Opacity: 1,
					},
					{
						ID:      "lyr-photo",
						Name:    "Photo",
						Bounds:  models.BoundingBox{X: 120, Y: 200, W: 600, H: 220},
						Visible: true,
						Opacity: 0.9,
					},
				},
			},
			{
				ID:      "grp-footer",
				Name:    "Footer",
				Bounds:  models.BoundingBox{X: 0, Y: 980, W: 1920, H: 100},
				Visible: true,
				Opacity: 1,
			},
		},
	}
}

// CreateRegisterDocumentRequest builds a document registration payload.
func CreateRegisterDocumentRequest(name string) *models.RegisterDocumentRequest {
	return &models.RegisterDocumentRequest{
		Name: name,
		Root: CreateDesignTree(),
	}
}

// CreateGeometricLayout builds a layout request that places the hero group
// layers into a target slot without any generative fill.
func CreateGeometricLayout() *models.LayoutRequest {
	tree := CreateDesignTree()
	hero := tree.Children[0]
	return &models.LayoutRequest{
		SourceLayers: hero.Children,
		SourceBox:    hero.Bounds,
		TargetBox:    models.BoundingBox{X: 0, Y: 0, W: 400, H: 300},
		Strategy: &models.PlacementStrategy{
			Method: models.PlacementGeometric,
			Anchor: models.AnchorCenter,
		},
	}
}

// CreateGenerativeLayout builds a layout request whose strategy asks for
// AI-synthesized fill content with the given prompt.
func CreateGenerativeLayout(prompt string) *models.LayoutRequest {
	req := CreateGeometricLayout()
	req.Strategy = &models.PlacementStrategy{
		Method: models.PlacementGenerative,
		Anchor: models.AnchorCenter,
		Prompt: prompt,
	}
	return req
}

// ToJSON converts a fixture to JSON string
func ToJSON(fixture interface{}) string {
	data, _ := json.Marshal(fixture)
	return string(data)
}

// FromJSON parses JSON string to map
func FromJSON(jsonStr string) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal([]byte(jsonStr), &result)
	return result
}

// CreateTestLoginRequest creates a login request payload
func CreateTestLoginRequest(email, password string) map[string]interface{} {
	return map[string]interface{}{
		"email":    email,
		"password": password,
	}
}

// MockGenerationResponse creates a mock response from the generation service
func MockGenerationResponse(image string) map[string]interface{} {
	return map[string]interface{}{
		"image": image,
	}
}
