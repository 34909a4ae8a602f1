package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/c360studio/semdraft/llm"
)

// Layer classifies a feature category as user-facing functionality or
// architectural concern.
type Layer string

const (
	LayerFunctional    Layer = "functional"
	LayerArchitectural Layer = "architectural"
)

// categoryLayers is the enumerated category-to-layer mapping. Categories
// outside this table resolve to functional; that fallback is logged once
// per category name.
var categoryLayers = map[string]Layer{
	"Core Functionality":            LayerFunctional,
	"AI & Intelligence":             LayerFunctional,
	"User Experience":               LayerFunctional,
	"Assessment & Progress":         LayerFunctional,
	"Engagement":                    LayerFunctional,
	"Integrations":                  LayerFunctional,
	"Analytics & Reporting":         LayerFunctional,
	"Architecture & Infrastructure": LayerArchitectural,
	"Security & Compliance":         LayerArchitectural,
	"ML & Model Layer":              LayerArchitectural,
	"DevOps & Deployment":           LayerArchitectural,
	"Observability & Monitoring":    LayerArchitectural,
	"Testing & QA":                  LayerArchitectural,
}

var (
	unknownCategoriesMu sync.Mutex
	unknownCategories   = make(map[string]bool)
)

// LayerFor resolves a category name to its layer.
func LayerFor(category string) Layer {
	if layer, ok := categoryLayers[category]; ok {
		return layer
	}
	unknownCategoriesMu.Lock()
	defer unknownCategoriesMu.Unlock()
	if !unknownCategories[category] {
		unknownCategories[category] = true
		slog.Warn("Unknown feature category, defaulting to functional", "category", category)
	}
	return LayerFunctional
}

// CatalogFeature is one candidate feature in the discovery catalog.
type CatalogFeature struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CatalogCategory groups features under a named category.
type CatalogCategory struct {
	Name     string           `json:"name"`
	Features []CatalogFeature `json:"features"`
}

// Catalog is the feature catalog presented during feature discovery.
// Source records whether it came from a model or the built-in fallback.
type Catalog struct {
	Categories []CatalogCategory `json:"categories"`
	Source     string            `json:"source"`
}

// Catalog sources.
const (
	CatalogSourceLLM      = "llm"
	CatalogSourceFallback = "fallback"
)

// SelectedFeature is one operator choice, with its layer resolved.
type SelectedFeature struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Layer    Layer  `json:"layer"`
}

// ExclusionGroup names feature choices that cannot be selected together.
type ExclusionGroup struct {
	Group      string
	Label      string
	FeatureIDs []string
}

// MutualExclusionGroups are the built-in incompatible pairs.
var MutualExclusionGroups = []ExclusionGroup{
	{
		Group:      "architecture_style",
		Label:      "Architecture Style",
		FeatureIDs: []string{"microservices", "modular_monolith"},
	},
	{
		Group:      "deployment_strategy",
		Label:      "Deployment Strategy",
		FeatureIDs: []string{"blue_green_deploy", "canary_releases"},
	},
}

// TextGenerator is the narrow generation dependency for catalog creation.
// The llm client satisfies it; tests supply fakes.
type TextGenerator interface {
	GenerateText(ctx context.Context, capability, system, prompt string) (string, error)
}

// catalogCapability routes catalog generation to its configured model.
const catalogCapability = "catalog"

const catalogSystemPrompt = "You are a product feature expert. Generate feature catalogs for software products."

const catalogPromptTemplate = `Given this project idea: %q

Generate 50-75 product features organized into up to 13 categories.
Return ONLY valid JSON with this structure:
{"categories": [{"name": "Category Name", "features": [{"id": "unique_snake_case", "name": "Feature Name", "description": "one sentence, max 15 words"}]}]}

Rules:
- 50-75 features total across up to 13 categories
- 3-8 features per category
- Features must be specific to THIS project idea
- Each feature id must be unique, lowercase with underscores
- Categories should cover both functional and architectural aspects:
  Functional: Core Functionality, AI & Intelligence, User Experience, Assessment & Progress, Engagement, Integrations, Analytics & Reporting
  Architectural: Architecture & Infrastructure, Security & Compliance, ML & Model Layer, DevOps & Deployment, Observability & Monitoring, Testing & QA
- Return ONLY the JSON object, no markdown or explanation`

// GenerateCatalog builds a project-specific catalog with a one-time model
// call. Any transport or parse failure falls back to the built-in catalog;
// callers inspect Source to see which path produced it.
func GenerateCatalog(ctx context.Context, gen TextGenerator, idea string) *Catalog {
	if gen == nil {
		return FallbackCatalog()
	}

	raw, err := gen.GenerateText(ctx, catalogCapability, catalogSystemPrompt,
		fmt.Sprintf(catalogPromptTemplate, idea))
	if err != nil {
		return FallbackCatalog()
	}

	catalog, err := parseCatalog(raw)
	if err != nil {
		return FallbackCatalog()
	}
	return catalog
}

// parseCatalog decodes and validates a model catalog response.
func parseCatalog(raw string) (*Catalog, error) {
	var catalog Catalog
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}

	seen := make(map[string]bool)
	for _, cat := range catalog.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("catalog category with empty name")
		}
		for _, f := range cat.Features {
			if f.ID == "" || f.Name == "" {
				return nil, fmt.Errorf("catalog feature missing id or name in %s", cat.Name)
			}
			if seen[f.ID] {
				return nil, fmt.Errorf("duplicate feature id %s", f.ID)
			}
			seen[f.ID] = true
		}
	}

	catalog.Source = CatalogSourceLLM
	return &catalog, nil
}

// EnsureCatalog returns the project's catalog, generating and persisting
// one on first use. The generation call runs outside the slug lock.
func (m *Manager) EnsureCatalog(ctx context.Context, slug string, gen TextGenerator) (*Catalog, error) {
	p, err := m.Load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p.Catalog != nil {
		return p.Catalog, nil
	}

	catalog := GenerateCatalog(ctx, gen, p.Idea)

	updated, err := m.Update(ctx, slug, func(p *Project) error {
		if p.Catalog == nil {
			p.Catalog = catalog
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Catalog, nil
}

// SelectFeatures validates the ids against the stored catalog, resolves
// layers, and persists the selection. Selections violating a mutual
// exclusion group are rejected whole.
func (m *Manager) SelectFeatures(ctx context.Context, slug string, ids []string) (*Project, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "features", Reason: "at least one feature id required"}
	}
	return m.Update(ctx, slug, func(p *Project) error {
		if p.Catalog == nil {
			return &PreconditionError{Phase: p.Phase, Requirement: "feature catalog not generated"}
		}
		if p.Locked() {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline is locked; unlock before changing features"}
		}

		index := make(map[string]SelectedFeature)
		for _, cat := range p.Catalog.Categories {
			for _, f := range cat.Features {
				index[f.ID] = SelectedFeature{
					ID:       f.ID,
					Name:     f.Name,
					Category: cat.Name,
					Layer:    LayerFor(cat.Name),
				}
			}
		}

		selection := make([]SelectedFeature, 0, len(ids))
		chosen := make(map[string]bool)
		for _, id := range ids {
			if chosen[id] {
				return &ValidationError{Field: "features", Reason: "duplicate feature id " + id}
			}
			feature, ok := index[id]
			if !ok {
				return &ValidationError{Field: "features", Reason: "unknown feature id " + id}
			}
			chosen[id] = true
			selection = append(selection, feature)
		}

		for _, group := range MutualExclusionGroups {
			var picked []string
			for _, id := range group.FeatureIDs {
				if chosen[id] {
					picked = append(picked, id)
				}
			}
			if len(picked) > 1 {
				return &ValidationError{
					Field:  "features",
					Reason: fmt.Sprintf("%s allows one choice, got %s", group.Label, strings.Join(picked, " and ")),
				}
			}
		}

		p.Features = selection
		return nil
	})
}

// FallbackCatalog returns the built-in generic catalog used when no model
// is available. All 13 categories are represented so both layers stay
// selectable.
func FallbackCatalog() *Catalog {
	return &Catalog{
		Source: CatalogSourceFallback,
		Categories: []CatalogCategory{
			{Name: "Core Functionality", Features: []CatalogFeature{
				{ID: "user_registration", Name: "User Registration", Description: "Account creation with email and profile setup"},
				{ID: "dashboard", Name: "Dashboard", Description: "Central hub showing key metrics and recent activity"},
				{ID: "search_filtering", Name: "Search & Filtering", Description: "Find and filter content with advanced search options"},
				{ID: "content_management", Name: "Content Management", Description: "Create, edit, and organize content within the platform"},
				{ID: "role_management", Name: "Role Management", Description: "Assign and manage user roles and permissions"},
			}},
			{Name: "AI & Intelligence", Features: []CatalogFeature{
				{ID: "ai_recommendations", Name: "AI Recommendations", Description: "Personalized suggestions powered by machine learning"},
				{ID: "content_generation", Name: "Content Generation", Description: "AI-powered automatic content creation and drafting"},
				{ID: "nlp_search", Name: "Natural Language Search", Description: "Search using natural language queries instead of keywords"},
			}},
			{Name: "User Experience", Features: []CatalogFeature{
				{ID: "responsive_design", Name: "Responsive Design", Description: "Optimized layout for desktop, tablet, and mobile"},
				{ID: "accessibility", Name: "Accessibility", Description: "WCAG-compliant design for users with disabilities"},
				{ID: "onboarding_flow", Name: "Onboarding Flow", Description: "Guided first-time user experience with tutorials"},
			}},
			{Name: "Assessment & Progress", Features: []CatalogFeature{
				{ID: "progress_tracking", Name: "Progress Tracking", Description: "Visual indicators showing completion status and milestones"},
				{ID: "goal_setting", Name: "Goal Setting", Description: "Define and track personal or team objectives"},
				{ID: "feedback_system", Name: "Feedback System", Description: "Collect and display structured feedback from users"},
			}},
			{Name: "Engagement", Features: []CatalogFeature{
				{ID: "notifications", Name: "Notifications", Description: "Email and in-app alerts for important events"},
				{ID: "gamification", Name: "Gamification", Description: "Points, badges, and streaks to motivate participation"},
				{ID: "social_features", Name: "Social Features", Description: "Comments, sharing, and collaboration between users"},
			}},
			{Name: "Integrations", Features: []CatalogFeature{
				{ID: "api_access", Name: "API Access", Description: "RESTful API for third-party integrations and extensions"},
				{ID: "third_party_auth", Name: "Third-party Auth", Description: "Login via Google, GitHub, or other OAuth providers"},
				{ID: "webhooks", Name: "Webhooks", Description: "Automated event notifications to external services"},
				{ID: "payment_gateway", Name: "Payment Gateway", Description: "Stripe or PayPal integration for billing"},
			}},
			{Name: "Analytics & Reporting", Features: []CatalogFeature{
				{ID: "usage_analytics", Name: "Usage Analytics", Description: "Track user engagement, retention, and feature adoption"},
				{ID: "custom_reports", Name: "Custom Reports", Description: "Generate tailored reports with flexible parameters"},
				{ID: "export_tools", Name: "Export Tools", Description: "Download data and reports in CSV and PDF formats"},
			}},
			{Name: "Architecture & Infrastructure", Features: []CatalogFeature{
				{ID: "microservices", Name: "Microservices", Description: "Independently deployable services with explicit boundaries"},
				{ID: "modular_monolith", Name: "Modular Monolith", Description: "Single deployable unit with well-defined internal modules"},
				{ID: "api_gateway", Name: "API Gateway", Description: "Centralized entry point handling routing, auth, and rate limiting"},
				{ID: "background_jobs", Name: "Background Jobs", Description: "Async task processing via worker queues"},
				{ID: "message_queue", Name: "Message Queue", Description: "Asynchronous inter-service communication via a broker"},
			}},
			{Name: "Security & Compliance", Features: []CatalogFeature{
				{ID: "encryption_at_rest", Name: "Encryption at Rest", Description: "Stored data encrypted with managed keys"},
				{ID: "audit_logging", Name: "Audit Logging", Description: "Immutable record of security-relevant actions"},
				{ID: "gdpr_compliance", Name: "GDPR Compliance", Description: "Data export, deletion, and consent workflows"},
			}},
			{Name: "ML & Model Layer", Features: []CatalogFeature{
				{ID: "model_registry", Name: "Model Registry", Description: "Versioned storage and promotion of trained models"},
				{ID: "inference_api", Name: "Inference API", Description: "Low-latency serving endpoint for model predictions"},
				{ID: "prompt_management", Name: "Prompt Management", Description: "Versioned prompts with evaluation and rollback"},
			}},
			{Name: "DevOps & Deployment", Features: []CatalogFeature{
				{ID: "ci_cd_pipeline", Name: "CI/CD Pipeline", Description: "Automated build, test, and deployment pipeline"},
				{ID: "blue_green_deploy", Name: "Blue-Green Deployment", Description: "Zero-downtime releases with instant rollback"},
				{ID: "canary_releases", Name: "Canary Releases", Description: "Gradual rollout to a traffic subset with monitoring"},
				{ID: "infrastructure_as_code", Name: "Infrastructure as Code", Description: "Declarative, versioned infrastructure definitions"},
			}},
			{Name: "Observability & Monitoring", Features: []CatalogFeature{
				{ID: "metrics_dashboard", Name: "Metrics Dashboard", Description: "Service health and business metrics in one place"},
				{ID: "distributed_tracing", Name: "Distributed Tracing", Description: "Request-level traces across service boundaries"},
				{ID: "alerting", Name: "Alerting", Description: "Threshold and anomaly alerts routed to on-call"},
			}},
			{Name: "Testing & QA", Features: []CatalogFeature{
				{ID: "unit_test_suite", Name: "Unit Test Suite", Description: "Fast, isolated tests covering core logic"},
				{ID: "integration_tests", Name: "Integration Tests", Description: "End-to-end verification of component boundaries"},
				{ID: "load_testing", Name: "Load Testing", Description: "Throughput and latency verification under load"},
			}},
		},
	}
}
