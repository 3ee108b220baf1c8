package models

// EmailTemplate defines the structure for notification templates stored in the DB.
type EmailTemplate struct {
	TemplateID string `bson:"template_id" json:"template_id"` // e.g., "new_customer_message", "inspection_reminder"
	Locale     string `bson:"locale" json:"locale"`           // e.g., "en-NG"
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"` // text/template source
}
