package payflow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HMACVerifier checks webhook event signatures against a per-provider
// shared secret. The signature covers eventId, transactionId, and
// status as a JSON array, HMAC-SHA256, hex encoded. The JSON encoding
// keeps field boundaries unambiguous whatever characters the ids carry.
//
// The exact scheme is an integration detail of the settlement network;
// this is the generic signed-event contract, swappable through the
// SignatureVerifier interface.
type HMACVerifier struct {
	secrets map[string]string
}

// NewHMACVerifier creates a verifier with one shared secret per provider
func NewHMACVerifier(secrets map[string]string) *HMACVerifier {
	if secrets == nil {
		secrets = map[string]string{}
	}
	return &HMACVerifier{secrets: secrets}
}

// SignEvent computes the expected signature for an event. Exposed so
// tests and trusted intermediaries can produce valid events.
func SignEvent(secret string, event WebhookEvent) string {
	payload, _ := json.Marshal([]string{event.ID, event.TransactionID, string(event.Status)})
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyEvent reports whether the event signature matches the secret
// registered for provider. Unknown providers never verify.
func (v *HMACVerifier) VerifyEvent(provider string, event WebhookEvent) bool {
	secret, ok := v.secrets[provider]
	if !ok {
		return false
	}
	expected := SignEvent(secret, event)
	return hmac.Equal([]byte(expected), []byte(event.Signature))
}

var _ SignatureVerifier = (*HMACVerifier)(nil)
