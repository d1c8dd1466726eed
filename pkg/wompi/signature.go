package wompi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Webhook and redirect query parameter names as sent by the processor.
const (
	SignatureHeader = "wompi_hash"

	ParamReference     = "identificadorEnlaceComercio"
	ParamTransactionID = "idTransaccion"
	ParamLinkID        = "idEnlace"
	ParamAmount        = "monto"
	ParamHash          = "hash"
)

// Sign computes the lowercase hex HMAC-SHA256 of msg under the shared secret.
func Sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks the signature header against the exact raw
// request body. Comparison is constant time; hex case is ignored. An empty
// signature never verifies.
func VerifyWebhookSignature(secret string, rawBody []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return false
	}
	expected := Sign(secret, rawBody)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyRedirectHash validates the signed query string of the hosted payment
// page redirect: reference + transaction id + link id + amount, concatenated
// raw with no delimiter, HMAC'd under the shared secret and compared against
// the hash parameter. Display-only trust path; never drives state changes.
func VerifyRedirectHash(secret string, q url.Values) bool {
	received := strings.ToLower(q.Get(ParamHash))
	if received == "" {
		return false
	}

	concat := q.Get(ParamReference) +
		q.Get(ParamTransactionID) +
		q.Get(ParamLinkID) +
		q.Get(ParamAmount)

	calc := Sign(secret, []byte(concat))
	return hmac.Equal([]byte(calc), []byte(received))
}
