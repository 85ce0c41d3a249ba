// Package mpesa is a client for the Vodacom M-Pesa OpenAPI (IPG v1x).
//
// Every call derives a fresh bearer token from the configured API key and RSA
// public key, sends one request to the operation's fixed port and path, and
// classifies the answer:
//
//   - *ConfigurationError: configuration incomplete or key material unusable;
//     returned before any network access.
//   - *RequestError: a payment or reversal amount that is negative, zero where
//     required, or not finite; also returned before any network access.
//   - *Result[T]: the gateway's business answer for any status below 500,
//     carrying either the typed output or the gateway's output_error.
//   - *ExchangeError: transport failure, timeout, 5xx status, or a body that
//     is not a JSON object.
//
// Output fields are strings. A number or boolean sent in their place is kept
// as its literal text rather than failing the decode.
//
// Nothing is retried or cached.
package mpesa
