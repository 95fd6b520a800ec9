// Package catalog talks to the product-detail API.
//
// Client.Fetch performs exactly one request per call and classifies the
// response into an Outcome:
//
//	200            Success, raw body attached
//	429            RateLimited, RetryAfter from the header or a random 3-10s
//	other status   HardFailure, never retried
//	network fault  TransientFailure
//
// ParseProduct converts a successful body into a models.ProductRecord,
// stripping HTML from the description and collecting image base URLs.
package catalog
