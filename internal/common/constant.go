package common

// AuthorizationHeader carries "Bearer <token>" on authenticated requests.
const AuthorizationHeader = "Authorization"

// WebhookSecretHeader carries the shared secret of the payment callback.
const WebhookSecretHeader = "X-Webhook-Secret"

// ResetTokenBytes is the amount of entropy in a password-reset token.
const ResetTokenBytes = 32

// GuestEmail is shown in admin listings for transactions without a user.
const GuestEmail = "Guest"
