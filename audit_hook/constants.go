package audithook

// Action constants for audit events.
const (
	// Template actions
	ActionTemplateCreated     = "template.created"
	ActionTemplateModified    = "template.modified"
	ActionTemplateDeactivated = "template.deactivated"

	// Merchant actions
	ActionMerchantAuthorized = "merchant.authorized"
	ActionMerchantRevoked    = "merchant.revoked"

	// Account actions
	ActionAccountMinted       = "account.minted"
	ActionTransactionRecorded = "account.transaction"
	ActionCurrencyRegistered  = "currency.registered"

	// Benefit actions
	ActionBenefitGranted  = "benefit.granted"
	ActionBenefitModified = "benefit.modified"
	ActionBenefitRedeemed = "benefit.redeemed"

	// Event actions
	ActionEventCreated = "event.created"
	ActionEventUpdated = "event.updated"
	ActionEventExpired = "event.expired"

	// Booking actions
	ActionBookingCreated    = "booking.created"
	ActionBookingCancelled  = "booking.cancelled"
	ActionCheckedIn         = "booking.checked_in"
	ActionEntranceAllowance = "booking.allowance_set"
)

// Resource constants for audit events.
const (
	ResourceTemplate = "template"
	ResourceMerchant = "merchant"
	ResourceAccount  = "account"
	ResourceCurrency = "currency"
	ResourceBenefit  = "benefit"
	ResourceEvent    = "event"
	ResourceBooking  = "booking"
)

// Category constants for audit events.
const (
	CategoryAdministration = "administration"
	CategoryAccess         = "access"
	CategoryPayment        = "payment"
	CategoryEntitlement    = "entitlement"
	CategoryScheduling     = "scheduling"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
