package models

// PortalConfig holds the captive-portal branding and payment instructions.
// It is a single admin-editable record handed to the landing page as an
// explicit object; nothing reads it from ambient state.
type PortalConfig struct {
	BaseModel

	BusinessName string `json:"businessName" db:"business_name"`
	LogoURL      string `json:"logoUrl" db:"logo_url"`
	MerchantCode string `json:"merchantCode" db:"merchant_code"`

	PaymentInstructions Variables `json:"paymentInstructions,omitempty" db:"payment_instructions"`
	Theme               Variables `json:"theme,omitempty" db:"theme"`
}
