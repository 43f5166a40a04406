// Package schema holds the read-only requirement-field catalog for each
// service category. The catalog drives extraction and readiness scoring;
// it is never mutated at runtime.
package schema

// FieldType constrains the value shape a field may take.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeBoolean FieldType = "boolean"
)

// Field describes one requirement slot to fill for a service category.
type Field struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Required    bool      `json:"required"`
	Type        FieldType `json:"type"`
	Description string    `json:"description"`
}

// Service category labels assignable as a session's problem type.
const (
	ServiceWebDevelopment   = "web_development"
	ServiceAnalytics        = "analytics"
	ServiceMarketing        = "marketing"
	ServiceWebsiteAnalytics = "website_analytics"
	ServiceGeneral          = "general"
)

// Known reports whether the label is a recognized service category.
func Known(serviceType string) bool {
	switch serviceType {
	case ServiceWebDevelopment, ServiceAnalytics, ServiceMarketing, ServiceWebsiteAnalytics, ServiceGeneral:
		return true
	}
	return false
}

var catalog = map[string][]Field{
	ServiceWebDevelopment: {
		{Key: "projectType", Label: "Project Type", Required: true, Type: TypeString,
			Description: "e-commerce, business site, portfolio, web app, etc."},
		{Key: "platform", Label: "Platform/CMS", Required: true, Type: TypeString,
			Description: "WordPress, Shopify, custom build, etc."},
		{Key: "hosting", Label: "Hosting", Required: true, Type: TypeString,
			Description: "client provides, we provide, or specific host"},
		{Key: "domain", Label: "Domain Status", Required: true, Type: TypeString,
			Description: "existing domain, need to purchase, or TBD"},
		{Key: "features", Label: "Key Features", Required: true, Type: TypeArray,
			Description: "specific features with implementation details"},
		{Key: "integrations", Label: "Third-party Integrations", Required: false, Type: TypeArray,
			Description: "payment processors, CRMs, email tools, analytics"},
		{Key: "designStyle", Label: "Design Style", Required: true, Type: TypeString,
			Description: "modern, classic, minimalist, professional, etc."},
		{Key: "designReferences", Label: "Reference Sites", Required: false, Type: TypeArray,
			Description: "URLs of sites they like for inspiration"},
		{Key: "contentStatus", Label: "Content Readiness", Required: true, Type: TypeString,
			Description: "have content ready, need copywriting help, or TBD"},
		{Key: "existingSite", Label: "Existing Site", Required: true, Type: TypeString,
			Description: "URL if exists, migration needed, or greenfield"},
		{Key: "accessNeeded", Label: "Access Requirements", Required: true, Type: TypeArray,
			Description: "hosting credentials, domain registrar, etc."},
		{Key: "timeline", Label: "Desired Timeline", Required: true, Type: TypeString,
			Description: "launch date or duration in weeks/months"},
		{Key: "budget", Label: "Budget Range", Required: true, Type: TypeObject,
			Description: "min and max budget or fixed amount"},
	},
	ServiceMarketing: {
		{Key: "serviceType", Label: "Marketing Service", Required: true, Type: TypeString,
			Description: "SEO, content creation, social media, email marketing, ads"},
		{Key: "currentState", Label: "Current Marketing", Required: true, Type: TypeString,
			Description: "what they currently do or have"},
		{Key: "goals", Label: "Marketing Goals", Required: true, Type: TypeArray,
			Description: "increase traffic, generate leads, brand awareness, etc."},
		{Key: "targetAudience", Label: "Target Audience", Required: true, Type: TypeString,
			Description: "who they are trying to reach"},
		{Key: "websiteUrl", Label: "Website URL", Required: false, Type: TypeString,
			Description: "their website if applicable"},
		{Key: "competitorUrls", Label: "Competitors", Required: false, Type: TypeArray,
			Description: "competitor websites for analysis"},
		{Key: "timeline", Label: "Timeline", Required: true, Type: TypeString,
			Description: "campaign duration or ongoing"},
		{Key: "budget", Label: "Budget", Required: true, Type: TypeObject,
			Description: "monthly or project budget"},
	},
	ServiceAnalytics: {
		{Key: "analysisType", Label: "Analysis Type", Required: true, Type: TypeString,
			Description: "revenue analysis, customer insights, forecasting, etc."},
		{Key: "dataSource", Label: "Data Source", Required: true, Type: TypeString,
			Description: "QuickBooks, Excel, Shopify, custom database, etc."},
		{Key: "dataAccess", Label: "Data Access Method", Required: true, Type: TypeString,
			Description: "API access, file export, screen share, etc."},
		{Key: "analysisGoals", Label: "Specific Questions", Required: true, Type: TypeArray,
			Description: "what questions they want answered"},
		{Key: "timeframe", Label: "Historical Timeframe", Required: true, Type: TypeString,
			Description: "how much historical data to analyze"},
		{Key: "deliverableFormat", Label: "Deliverable Format", Required: true, Type: TypeString,
			Description: "dashboard, report, presentation, etc."},
		{Key: "timeline", Label: "Timeline", Required: true, Type: TypeString,
			Description: "one-time or recurring analysis"},
		{Key: "budget", Label: "Budget", Required: true, Type: TypeObject,
			Description: "project or monthly budget"},
	},
	ServiceWebsiteAnalytics: {
		{Key: "websiteUrl", Label: "Website URL", Required: true, Type: TypeString,
			Description: "the website to analyze"},
		{Key: "analyticsAccess", Label: "Analytics Tool Access", Required: true, Type: TypeString,
			Description: "Google Analytics, Ahrefs, or other tool access"},
		{Key: "concerns", Label: "Performance Concerns", Required: true, Type: TypeArray,
			Description: "slow loading, high bounce rate, low conversions, etc."},
		{Key: "currentMetrics", Label: "Current Metrics", Required: false, Type: TypeObject,
			Description: "traffic, bounce rate, conversion rate if known"},
		{Key: "goals", Label: "Optimization Goals", Required: true, Type: TypeArray,
			Description: "improve speed, reduce bounce, increase conversions"},
		{Key: "siteAccess", Label: "Website Access", Required: true, Type: TypeString,
			Description: "CMS access, FTP, or read-only"},
		{Key: "timeline", Label: "Timeline", Required: true, Type: TypeString,
			Description: "urgency and duration"},
		{Key: "budget", Label: "Budget", Required: true, Type: TypeObject,
			Description: "budget range for optimization"},
	},
}

// Fields returns every field defined for the service type, or nil for an
// unknown or degenerate category.
func Fields(serviceType string) []Field {
	return catalog[serviceType]
}

// RequiredFields returns only the required fields for the service type.
func RequiredFields(serviceType string) []Field {
	var required []Field
	for _, f := range catalog[serviceType] {
		if f.Required {
			required = append(required, f)
		}
	}
	return required
}
