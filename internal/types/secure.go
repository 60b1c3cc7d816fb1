package types

// redactedPlaceholder is the string used to replace secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a vendor credential (NASA, OpenAI, Google Vision,
// GNews, SendGrid). String() and MarshalJSON() return a redacted
// placeholder so keys never reach logs or config dumps.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value. Only vendor clients building an
// outbound request should call it.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a credential was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
